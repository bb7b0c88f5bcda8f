// Package clock provides the current-date abstraction the limit engine
// depends on. The system provider honors a BUDGET_CURRENT_DATE override so
// tests and local runs can pin "today" to a fixed date.
package clock

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"budget/internal/core"
)

// OverrideEnv is the environment variable holding an ISO date (2006-01-02)
// that takes precedence over the real clock when present and non-empty.
const OverrideEnv = "BUDGET_CURRENT_DATE"

// Provider returns the current calendar date.
type Provider interface {
	Today() core.Date
}

// System reads the real clock, honoring the OverrideEnv override. An invalid
// override value logs a warning and falls back to the real clock rather than
// failing.
type System struct{}

func (System) Today() core.Date {
	if v := strings.TrimSpace(os.Getenv(OverrideEnv)); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			slog.Warn("Invalid current-date override, falling back to real clock",
				"env", OverrideEnv,
				"value", v,
				"error", err)
		} else {
			return d
		}
	}
	return core.DateOf(time.Now())
}

// Fixed always returns the same date. Used in tests.
type Fixed struct {
	Date core.Date
}

func (f Fixed) Today() core.Date {
	return f.Date
}
