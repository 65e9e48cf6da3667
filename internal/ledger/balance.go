package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultEpsilon is the tolerance below which a residual counts as zero.
const DefaultEpsilon = 0.005

type balanceEntry struct {
	ref    AccountRef
	amount decimal.Decimal
}

// BalanceAccumulator tracks the signed local-currency amount per ledger leg. Credits add,
// debits subtract. It is local to one generation pass.
type BalanceAccumulator struct {
	entries map[string]*balanceEntry
	order   []string
}

// NewBalanceAccumulator returns an empty accumulator.
func NewBalanceAccumulator() *BalanceAccumulator {
	return &BalanceAccumulator{entries: make(map[string]*balanceEntry)}
}

// Add folds amount into the running balance of ref.
func (b *BalanceAccumulator) Add(ref AccountRef, amount float64) {
	if ref.IsZero() {
		return
	}
	key := ref.Identity()
	current, ok := b.entries[key]
	if !ok {
		current = &balanceEntry{ref: ref}
		b.entries[key] = current
		b.order = append(b.order, key)
	}
	current.amount = current.amount.Add(decimal.NewFromFloat(amount))
}

// Amount returns the running balance for an identity.
func (b *BalanceAccumulator) Amount(identity string) float64 {
	current, ok := b.entries[identity]
	if !ok {
		return 0
	}
	return current.amount.InexactFloat64()
}

// Len returns the number of tracked legs.
func (b *BalanceAccumulator) Len() int {
	return len(b.order)
}

// UpdateBalanceByEntry folds the four account slots of entry into acc.
func UpdateBalanceByEntry(entry LedgerEntry, acc *BalanceAccumulator) {
	acc.Add(entry.CreditAccount1, entry.LocalCurrencyCreditAmount1)
	acc.Add(entry.DebitAccount1, -entry.LocalCurrencyDebitAmount1)
	acc.Add(entry.CreditAccount2, entry.LocalCurrencyCreditAmount2)
	acc.Add(entry.DebitAccount2, -entry.LocalCurrencyDebitAmount2)
}

// EntityBalance is the residual of one ledger leg.
type EntityBalance struct {
	Identity string      `json:"identity"`
	Kind     AccountKind `json:"kind"`
	Name     string      `json:"name,omitempty"`
	Amount   float64     `json:"amount"`
}

// BalanceReport summarises a generation pass. Balances lists every leg, but only business legs
// (plus the global residual) decide IsBalanced: tax category legs carry the other side of
// self-balancing entries and routinely hold residuals.
type BalanceReport struct {
	IsBalanced         bool            `json:"is_balanced"`
	Residual           float64         `json:"residual"`
	UnbalancedEntities []EntityBalance `json:"unbalanced_entities"`
	Balances           []EntityBalance `json:"balances"`
}

// AllowSet lists identities allowed to remain unbalanced.
type AllowSet map[string]struct{}

// Allow adds ref to the set.
func (s AllowSet) Allow(ref AccountRef) {
	if ref.IsZero() {
		return
	}
	s[ref.Identity()] = struct{}{}
}

// Has reports whether the identity is allow-listed.
func (s AllowSet) Has(identity string) bool {
	_, ok := s[identity]
	return ok
}

// BalanceInfo inspects acc. Any business leg with a residual of at least epsilon that is not
// allow-listed marks the batch unbalanced. Tax category legs carry P&L and asset movements and
// are reported without affecting the verdict. The global residual across all legs must also be
// within epsilon.
func BalanceInfo(acc *BalanceAccumulator, allowed AllowSet, epsilon float64) BalanceReport {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	report := BalanceReport{IsBalanced: true}
	total := decimal.Zero
	for _, key := range acc.order {
		current := acc.entries[key]
		total = total.Add(current.amount)
		amount := current.amount.InexactFloat64()
		balance := EntityBalance{Identity: key, Kind: current.ref.Kind(), Name: current.ref.Name(), Amount: round2(amount)}
		report.Balances = append(report.Balances, balance)
		if math.Abs(amount) < epsilon {
			continue
		}
		if current.ref.Kind() != AccountKindBusiness || allowed.Has(key) {
			continue
		}
		report.IsBalanced = false
		report.UnbalancedEntities = append(report.UnbalancedEntities, balance)
	}
	residual := total.InexactFloat64()
	report.Residual = round2(residual)
	if math.Abs(residual) >= epsilon {
		report.IsBalanced = false
	}
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
