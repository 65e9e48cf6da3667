package ledger

import "fmt"

// GeneratedLedger is the outcome of a successful generation pass.
type GeneratedLedger struct {
	Charge  Charge        `json:"-"`
	Records []LedgerEntry `json:"records"`
	Balance BalanceReport `json:"balance"`
	Errors  []string      `json:"errors,omitempty"`
}

// Batch collects entries for one charge while keeping the balance accumulator in step.
type Batch struct {
	charge  Charge
	entries []LedgerEntry
	balance *BalanceAccumulator
	allowed AllowSet
	errors  []string
}

// NewBatch starts an empty batch for charge.
func NewBatch(charge Charge) *Batch {
	return &Batch{
		charge:  charge,
		balance: NewBalanceAccumulator(),
		allowed: make(AllowSet),
	}
}

// Push appends entries and folds them into the accumulator.
func (b *Batch) Push(entries ...LedgerEntry) {
	for _, entry := range entries {
		b.entries = append(b.entries, entry)
		UpdateBalanceByEntry(entry, b.balance)
	}
}

// AllowUnbalanced allow-lists a leg that is intentionally one-sided.
func (b *Batch) AllowUnbalanced(ref AccountRef) {
	b.allowed.Allow(ref)
}

// Errorf records a recoverable lookup miss.
func (b *Batch) Errorf(format string, args ...any) {
	b.errors = append(b.errors, fmt.Sprintf(format, args...))
}

// Entries returns the collected entries.
func (b *Batch) Entries() []LedgerEntry {
	return b.entries
}

// Balance exposes the running accumulator.
func (b *Batch) Balance() *BalanceAccumulator {
	return b.balance
}

// Report computes the balance report without closing the batch.
func (b *Batch) Report(epsilon float64) BalanceReport {
	return BalanceInfo(b.balance, b.allowed, epsilon)
}

// Result closes the batch.
func (b *Batch) Result(epsilon float64) GeneratedLedger {
	return GeneratedLedger{
		Charge:  b.charge,
		Records: b.entries,
		Balance: b.Report(epsilon),
		Errors:  b.errors,
	}
}
