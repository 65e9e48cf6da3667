package ledger

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewEntrySignConvention(t *testing.T) {
	business := BusinessRef(uuid.New())
	bank := TaxCategoryRef(TaxCategory{ID: uuid.New(), Name: "Bank USD"})
	rate := 3.7
	incoming := NewEntry(EntryParams{
		Counterparty:  business,
		Main:          bank,
		Currency:      "USD",
		LocalCurrency: "ILS",
		Amount:        100,
		LocalAmount:   370,
		CurrencyRate:  &rate,
		ValueDate:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	require.True(t, incoming.IsCreditorCounterparty)
	require.Equal(t, business, incoming.CreditAccount1)
	require.Equal(t, bank, incoming.DebitAccount1)
	require.Equal(t, 370.0, incoming.LocalCurrencyCreditAmount1)
	require.Equal(t, 370.0, incoming.LocalCurrencyDebitAmount1)
	require.NotNil(t, incoming.CreditAmount1)
	require.Equal(t, 100.0, *incoming.CreditAmount1)
	require.Equal(t, incoming.ValueDate, incoming.InvoiceDate)

	outgoing := NewEntry(EntryParams{
		Counterparty:  business,
		Main:          bank,
		Currency:      "ILS",
		LocalCurrency: "ILS",
		Amount:        -50,
		LocalAmount:   -50,
	})
	require.False(t, outgoing.IsCreditorCounterparty)
	require.Equal(t, bank, outgoing.CreditAccount1)
	require.Equal(t, business, outgoing.DebitAccount1)
	require.Nil(t, outgoing.CreditAmount1)
	require.Nil(t, outgoing.CurrencyRate)
}

func TestEntryValidate(t *testing.T) {
	entry := NewEntry(EntryParams{
		Counterparty:  BusinessRef(uuid.New()),
		Main:          BusinessRef(uuid.New()),
		LocalCurrency: "ILS",
		Currency:      "ILS",
		LocalAmount:   12,
	})
	require.NoError(t, entry.Validate())

	entry.LocalCurrencyDebitAmount1 = 11
	require.True(t, errors.Is(entry.Validate(), ErrEntryUnbalanced))

	require.Error(t, LedgerEntry{}.Validate())
}

func TestAccountRefIdentity(t *testing.T) {
	id := uuid.New()
	require.Equal(t, id.String(), BusinessRef(id).Identity())
	require.Equal(t, "VAT", TaxCategoryRef(TaxCategory{ID: id, Name: "VAT"}).Identity())
	require.Equal(t, id.String(), TaxCategoryRef(TaxCategory{ID: id}).Identity())
	require.Equal(t, "", AccountRef{}.Identity())
}

func TestAccountRefJSON(t *testing.T) {
	ref := TaxCategoryRef(TaxCategory{ID: uuid.New(), Name: "Fees"})
	raw, err := json.Marshal(ref)
	require.NoError(t, err)
	var decoded AccountRef
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, ref, decoded)

	raw, err = json.Marshal(AccountRef{})
	require.NoError(t, err)
	require.Equal(t, "null", string(raw))
}

func TestCommonErrorJSON(t *testing.T) {
	raw, err := json.Marshal(NewCommonError("Missing configured %s", "fee tax category"))
	require.NoError(t, err)
	require.JSONEq(t, `{"__typename":"CommonError","message":"Missing configured fee tax category"}`, string(raw))

	ce, ok := AsCommonError(errors.Join(errors.New("x"), NewCommonError("boom")))
	require.True(t, ok)
	require.Equal(t, "boom", ce.Message)
}
