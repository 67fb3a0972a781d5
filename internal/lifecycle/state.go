package lifecycle

import (
	"fmt"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/constants"
	"github.com/kozaktomas/shop-kiosk/internal/database"
)

// VisitState is the position of a customer in the visit state machine.
type VisitState int

const (
	Unregistered VisitState = iota
	NotCheckedIn
	CheckedIn
	CheckedOut
)

func (s VisitState) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case NotCheckedIn:
		return "not_checked_in"
	case CheckedIn:
		return "checked_in"
	case CheckedOut:
		return "checked_out"
	default:
		return fmt.Sprintf("visit_state(%d)", int(s))
	}
}

// MarshalText renders the state as its snake_case name.
func (s VisitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a snake_case state name.
func (s *VisitState) UnmarshalText(text []byte) error {
	for _, v := range []VisitState{Unregistered, NotCheckedIn, CheckedIn, CheckedOut} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown visit state %q", text)
}

// State derives the visit state from the stored timestamps. A nil customer is Unregistered.
func State(c *database.Customer) VisitState {
	switch {
	case c == nil:
		return Unregistered
	case c.EntryTime == nil:
		return NotCheckedIn
	case c.ExitTime == nil:
		return CheckedIn
	default:
		return CheckedOut
	}
}

// FormatDuration renders elapsed visit time rounded down to whole minutes, e.g. "90 minutes".
// Negative durations render as "0 minutes".
func FormatDuration(d time.Duration) string {
	minutes := int64(d / constants.DurationUnit)
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d minutes", minutes)
}
