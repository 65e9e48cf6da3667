package documents

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrEmptyInput indicates no accounting document remained after filtering.
	ErrEmptyInput = errors.New("documents: no accounting documents to aggregate")
	// ErrInvalidDocumentState indicates a document whose creditor/debtor pair is unusable.
	ErrInvalidDocumentState = errors.New("documents: invalid document state")
	// ErrNotOwned indicates a document that does not involve the owner.
	ErrNotOwned = errors.New("documents: document is not owned by the entity")
	// ErrMixedCurrencies indicates several currencies across documents.
	ErrMixedCurrencies = errors.New("documents: documents must share exactly one currency")
	// ErrMissingCurrency indicates a document without a currency.
	ErrMissingCurrency = errors.New("documents: document currency missing")
	// ErrMixedBusinesses indicates documents naming different counterparties.
	ErrMixedBusinesses = errors.New("documents: documents name more than one business")
	// ErrMissingDate indicates none of the documents carry a date.
	ErrMissingDate = errors.New("documents: no document date")
	// ErrMissingAmount indicates a document without a total amount.
	ErrMissingAmount = errors.New("documents: document amount missing")
)

// AggregationError carries the failing step and, when known, the offending document.
type AggregationError struct {
	Op         string
	DocumentID uuid.UUID
	Err        error
}

func (e *AggregationError) Error() string {
	if e.DocumentID == uuid.Nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: document %s: %v", e.Op, e.DocumentID, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

func fail(op string, id uuid.UUID, err error) error {
	return &AggregationError{Op: op, DocumentID: id, Err: err}
}
