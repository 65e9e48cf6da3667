package reserves

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// Kind selects the reserve being computed.
type Kind string

const (
	KindVacation Kind = "vacation"
	KindRecovery Kind = "recovery"
)

var (
	// ErrInvalidYear indicates a missing or non-positive target year.
	ErrInvalidYear = errors.New("reserves: invalid year")
	// ErrInvalidParams indicates unusable rate parameters.
	ErrInvalidParams = errors.New("reserves: invalid parameters")
	// ErrUnknownKind indicates an unsupported reserve kind.
	ErrUnknownKind = errors.New("reserves: unknown reserve kind")
)

// Params carries the valuation constants.
type Params struct {
	Year             int
	WorkDaysPerMonth float64
	RecoveryDayValue float64
}

// EmployeeInput pairs an employee with their salary records.
type EmployeeInput struct {
	Employee ledger.Employee
	Salaries []ledger.SalaryRecord
}

// EmployeeReserve is one employee's accrued liability at year-end.
type EmployeeReserve struct {
	EmployeeID      uuid.UUID
	SeniorityYears  float64
	EntitlementDays float64
	JobPercentage   float64
	DayValue        float64
	Accrued         float64
	Paid            float64
	Liability       float64
}

// Result aggregates employee reserves and the delta against what is already posted.
type Result struct {
	Kind      Kind
	Year      int
	Cutoff    time.Time
	Employees []EmployeeReserve
	Liability float64
	Posted    float64
	Delta     float64
}

// Calculate computes the reserve of kind for inputs at the end of params.Year. posted is the
// reserve balance already booked by entries dated before that year-end; Delta is what the
// year still has to post.
func Calculate(kind Kind, params Params, inputs []EmployeeInput, posted float64) (Result, error) {
	if params.Year <= 0 {
		return Result{}, ErrInvalidYear
	}
	switch kind {
	case KindVacation:
		if params.WorkDaysPerMonth <= 0 {
			return Result{}, fmt.Errorf("%w: work days per month must be positive", ErrInvalidParams)
		}
	case KindRecovery:
		if params.RecoveryDayValue <= 0 {
			return Result{}, fmt.Errorf("%w: recovery day value must be positive", ErrInvalidParams)
		}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	cutoff := YearEnd(params.Year)
	res := Result{Kind: kind, Year: params.Year, Cutoff: cutoff, Posted: round2(posted)}
	total := decimal.Zero
	for _, in := range inputs {
		reserve, ok := employeeReserve(kind, params, in, cutoff)
		if !ok {
			continue
		}
		res.Employees = append(res.Employees, reserve)
		total = total.Add(decimal.NewFromFloat(reserve.Liability))
	}
	res.Liability = round2(total.InexactFloat64())
	res.Delta = round2(total.Sub(decimal.NewFromFloat(posted)).InexactFloat64())
	return res, nil
}

func employeeReserve(kind Kind, params Params, in EmployeeInput, cutoff time.Time) (EmployeeReserve, bool) {
	emp := in.Employee
	if emp.StartDate.IsZero() || emp.StartDate.After(cutoff) {
		return EmployeeReserve{}, false
	}
	end := cutoff
	if emp.EndDate != nil && emp.EndDate.Before(end) {
		end = *emp.EndDate
	}
	seniority := SeniorityYears(emp.StartDate, end)

	var (
		jobSum     decimal.Decimal
		jobCount   int64
		paid       decimal.Decimal
		latest     *ledger.SalaryRecord
		latestDate time.Time
	)
	for i := range in.Salaries {
		rec := &in.Salaries[i]
		if rec.Date.After(cutoff) {
			continue
		}
		jobSum = jobSum.Add(decimal.NewFromFloat(rec.JobPercentage))
		jobCount++
		switch kind {
		case KindVacation:
			paid = paid.Add(decimal.NewFromFloat(rec.VacationPayment))
		case KindRecovery:
			paid = paid.Add(decimal.NewFromFloat(rec.RecoveryPayment))
		}
		if latest == nil || !rec.Date.Before(latestDate) {
			latest = rec
			latestDate = rec.Date
		}
	}

	job := decimal.NewFromInt(1)
	if jobCount > 0 {
		job = jobSum.Div(decimal.NewFromInt(jobCount)).Div(decimal.NewFromInt(100))
	}

	var days, dayValue float64
	switch kind {
	case KindVacation:
		days = VacationDaysPerYearsOfExperience(seniority)
		if latest != nil {
			dayValue = latest.BaseSalary / params.WorkDaysPerMonth
		}
	case KindRecovery:
		days = RecoveryDaysPerYearsOfExperience(seniority)
		dayValue = params.RecoveryDayValue
	}

	accrued := decimal.NewFromFloat(days).Mul(job).Mul(decimal.NewFromFloat(dayValue))
	return EmployeeReserve{
		EmployeeID:      emp.ID,
		SeniorityYears:  seniority,
		EntitlementDays: days,
		JobPercentage:   job.InexactFloat64(),
		DayValue:        dayValue,
		Accrued:         round2(accrued.InexactFloat64()),
		Paid:            round2(paid.InexactFloat64()),
		Liability:       round2(accrued.Sub(paid).InexactFloat64()),
	}, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
