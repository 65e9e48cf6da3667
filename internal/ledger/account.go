package ledger

import (
	"encoding/json"

	"github.com/google/uuid"
)

// AccountKind distinguishes counterparties from accounting nodes.
type AccountKind string

const (
	AccountKindBusiness    AccountKind = "business"
	AccountKindTaxCategory AccountKind = "tax_category"
)

// AccountRef is a ledger leg: either a business referenced by id or a resolved tax category.
// The zero value is an empty slot.
type AccountRef struct {
	id   uuid.UUID
	kind AccountKind
	name string
}

// BusinessRef references a counterparty business by id.
func BusinessRef(id uuid.UUID) AccountRef {
	return AccountRef{id: id, kind: AccountKindBusiness}
}

// TaxCategoryRef references a resolved tax category.
func TaxCategoryRef(category TaxCategory) AccountRef {
	return AccountRef{id: category.ID, kind: AccountKindTaxCategory, name: category.Name}
}

// IsZero reports an empty slot.
func (a AccountRef) IsZero() bool {
	return a.kind == ""
}

// ID returns the referenced id.
func (a AccountRef) ID() uuid.UUID {
	return a.id
}

// Kind returns the reference kind.
func (a AccountRef) Kind() AccountKind {
	return a.kind
}

// Name returns the resolved name, empty for business references.
func (a AccountRef) Name() string {
	return a.name
}

// Identity is the key used by the balance accumulator: the id for businesses, the name for
// resolved tax categories.
func (a AccountRef) Identity() string {
	if a.kind == AccountKindTaxCategory && a.name != "" {
		return a.name
	}
	if a.kind == "" {
		return ""
	}
	return a.id.String()
}

type accountRefJSON struct {
	ID   uuid.UUID   `json:"id"`
	Kind AccountKind `json:"kind"`
	Name string      `json:"name,omitempty"`
}

// MarshalJSON renders empty slots as null.
func (a AccountRef) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(accountRefJSON{ID: a.id, Kind: a.kind, Name: a.name})
}

// UnmarshalJSON restores a reference rendered by MarshalJSON.
func (a *AccountRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = AccountRef{}
		return nil
	}
	var raw accountRefJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AccountRef{id: raw.ID, kind: raw.Kind, name: raw.Name}
	return nil
}
