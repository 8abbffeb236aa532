package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the upper bound of a WallClock; "24:00" is a valid end time.
const MinutesPerDay = 24 * 60

const dateLayout = "2006-01-02"

var ErrInvalidWallClock = fmt.Errorf("invalid wall clock time")
var ErrInvalidDate = fmt.Errorf("invalid calendar date")

// WallClock is a local venue time expressed as minutes since midnight.
// It is rendered as a zero-padded 24-hour "HH:MM" string.
type WallClock int

// ParseWallClock converts "HH:MM" to a WallClock. Accepts 00:00 up to 24:00.
func ParseWallClock(s string) (WallClock, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || !twoDigits(parts[0]) || !twoDigits(parts[1]) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
	}
	if minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
	}
	total := hours*60 + minutes
	if total > MinutesPerDay {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWallClock, s)
	}
	return WallClock(total), nil
}

func twoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

// MustWallClock is ParseWallClock for constants and tests. It panics on malformed input.
func MustWallClock(s string) WallClock {
	w, err := ParseWallClock(s)
	if err != nil {
		panic(err)
	}
	return w
}

func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", int(w)/60, int(w)%60)
}

// Minutes returns the number of minutes since midnight.
func (w WallClock) Minutes() int {
	return int(w)
}

func (w WallClock) Add(minutes int) WallClock {
	return w + WallClock(minutes)
}

// Sub returns w - other in minutes.
func (w WallClock) Sub(other WallClock) int {
	return int(w - other)
}

func (w WallClock) Before(other WallClock) bool {
	return w < other
}

func (w WallClock) After(other WallClock) bool {
	return w > other
}

// Floor snaps w down to the nearest multiple of step minutes from midnight.
func (w WallClock) Floor(step int) WallClock {
	if step <= 0 {
		return w
	}
	return WallClock(int(w) - int(w)%step)
}

// Aligned reports whether w lies on a step boundary.
func (w WallClock) Aligned(step int) bool {
	return step > 0 && int(w)%step == 0
}

// Valid reports whether w is within a single day.
func (w WallClock) Valid() bool {
	return w >= 0 && w <= MinutesPerDay
}

func (w WallClock) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidWallClock, int(w))
	}
	return []byte(w.String()), nil
}

func (w *WallClock) UnmarshalText(text []byte) error {
	parsed, err := ParseWallClock(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Date is a calendar day in the venue's local time, formatted "YYYY-MM-DD".
type Date string

func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date(s), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Time returns midnight of the day in the given location.
func (d Date) Time(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, string(d))
	}
	return t, nil
}

// AddDays returns the date shifted by n days. Invalid dates are returned unchanged.
func (d Date) AddDays(n int) Date {
	t, err := d.Time(time.UTC)
	if err != nil {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

func (d Date) String() string {
	return string(d)
}
