package core

// PeriodEndDate computes the inclusive end date of a limit period starting
// at start.
//
//	WEEKLY     -> start + 6 days
//	MONTHLY    -> (start + 1 calendar month) - 1 day, with the month addition
//	              clamped to the target month's length (Jan 31 -> Feb 27/28)
//	INDEFINITE -> zero date (no end)
//
// A zero start date or an unknown period yields a zero date rather than an
// error; missing inputs mean "no end", not a failure.
func PeriodEndDate(start Date, period Period) Date {
	if start.IsZero() {
		return Date{}
	}

	switch period {
	case Weekly:
		return start.AddDays(6)
	case Monthly:
		return start.AddMonths(1).AddDays(-1)
	default:
		return Date{}
	}
}
