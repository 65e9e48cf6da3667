// Package reserves computes year-end vacation and recovery liabilities per employee.
package reserves

import "math"

type band struct {
	upTo    float64
	perYear float64
}

var vacationBands = []band{
	{upTo: 5, perYear: 12},
	{upTo: 8, perYear: 17},
	{upTo: 10, perYear: 20},
	{upTo: math.Inf(1), perYear: 23},
}

// recovery days grow with the year of employment: 1st 5, 2nd-3rd 6, 4th-10th 7, 11th-15th 8,
// 16th-19th 9, 20th onwards 10.
var recoveryBands = []band{
	{upTo: 1, perYear: 5},
	{upTo: 3, perYear: 6},
	{upTo: 10, perYear: 7},
	{upTo: 15, perYear: 8},
	{upTo: 19, perYear: 9},
	{upTo: math.Inf(1), perYear: 10},
}

// VacationDaysPerYearsOfExperience returns the cumulative vacation days earned over years of
// seniority, rounded to the nearest half day.
func VacationDaysPerYearsOfExperience(years float64) float64 {
	return roundHalf(accumulate(vacationBands, years))
}

// RecoveryDaysPerYearsOfExperience returns the cumulative recovery days earned over years of
// seniority, rounded to the nearest half day.
func RecoveryDaysPerYearsOfExperience(years float64) float64 {
	return roundHalf(accumulate(recoveryBands, years))
}

func accumulate(bands []band, years float64) float64 {
	if years <= 0 {
		return 0
	}
	var days, from float64
	for _, b := range bands {
		if years <= from {
			break
		}
		span := math.Min(years, b.upTo) - from
		days += span * b.perYear
		from = b.upTo
	}
	return days
}

func roundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}
