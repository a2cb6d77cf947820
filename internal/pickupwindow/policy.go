package pickupwindow

import (
	"fmt"
	"math"
	"time"
	_ "time/tzdata"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/types"
)

// DefaultPadding is the distance from the scheduled time to each window edge.
const DefaultPadding = time.Hour

// Window is an inclusive pickup interval.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Override carries an explicitly requested window. Nil edges keep the default.
type Override struct {
	Start *time.Time
	End   *time.Time
}

// Policy validates requested pickup times against a business's rules.
type Policy struct {
	padding time.Duration
}

// NewPolicy returns a policy using padding for default windows. A
// non-positive padding falls back to DefaultPadding.
func NewPolicy(padding time.Duration) *Policy {
	if padding <= 0 {
		padding = DefaultPadding
	}
	return &Policy{padding: padding}
}

// Validate checks scheduled against now and the business settings. Checks run
// in a fixed order and the first failure wins.
func (p *Policy) Validate(business models.Business, scheduled, now time.Time) error {
	if !scheduled.After(now) {
		return pkgerrors.New(pkgerrors.CodePastPickupTime, "pickup time must be in the future").
			WithDetails(map[string]any{"pickupTime": scheduled.UTC()})
	}

	earliest := now.Add(noticeDuration(business.AdvanceNoticeHours))
	if scheduled.Before(earliest) {
		return pkgerrors.Newf(pkgerrors.CodeAdvanceNoticeViolation,
			"pickup must be scheduled at least %g hours in advance", business.AdvanceNoticeHours).
			WithDetails(map[string]any{
				"advanceNoticeHours": business.AdvanceNoticeHours,
				"earliestPickupTime": earliest.UTC(),
			})
	}

	open, err := IsOpen(business, scheduled)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "evaluate operating hours")
	}
	if !open {
		return pkgerrors.New(pkgerrors.CodeBusinessClosed, "business is closed at the requested pickup time").
			WithDetails(map[string]any{"pickupTime": scheduled.UTC()})
	}
	return nil
}

// DefaultWindow centres a window of twice the padding on scheduled.
func (p *Policy) DefaultWindow(scheduled time.Time) Window {
	return Window{
		Start: scheduled.Add(-p.padding),
		End:   scheduled.Add(p.padding),
	}
}

// Resolve builds the default window and then applies any override edge.
func (p *Policy) Resolve(scheduled time.Time, override *Override) (Window, error) {
	window := p.DefaultWindow(scheduled)
	if override != nil {
		if override.Start != nil {
			window.Start = *override.Start
		}
		if override.End != nil {
			window.End = *override.End
		}
	}
	if !window.Start.Before(window.End) {
		return Window{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup window start must be before its end")
	}
	return window, nil
}

// IsOpen reports whether the business is open at t in its own time zone.
// Ranges whose close is earlier than their open run past midnight; the
// late-night tail is attributed to the previous day's entry.
func IsOpen(business models.Business, t time.Time) (bool, error) {
	loc, err := location(business.Timezone)
	if err != nil {
		return false, err
	}
	local := t.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if hours, ok := business.OperatingHours.For(local.Weekday()); ok {
		opens, closes, err := parseRange(hours)
		if err != nil {
			return false, err
		}
		if opens <= closes {
			if minute >= opens && minute <= closes {
				return true, nil
			}
		} else if minute >= opens {
			return true, nil
		}
	}

	previous := local.AddDate(0, 0, -1).Weekday()
	if hours, ok := business.OperatingHours.For(previous); ok {
		opens, closes, err := parseRange(hours)
		if err != nil {
			return false, err
		}
		if opens > closes && minute <= closes {
			return true, nil
		}
	}
	return false, nil
}

func parseRange(hours types.DayHours) (int, int, error) {
	opens, err := types.ParseClock(hours.Open)
	if err != nil {
		return 0, 0, err
	}
	closes, err := types.ParseClock(hours.Close)
	if err != nil {
		return 0, 0, err
	}
	return opens, closes, nil
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

func noticeDuration(hours float64) time.Duration {
	if hours <= 0 || math.IsNaN(hours) {
		return 0
	}
	return time.Duration(hours * float64(time.Hour))
}
