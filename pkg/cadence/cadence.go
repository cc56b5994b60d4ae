// Package cadence parses cron-style cadence expressions and computes the
// next matching instant after a reference timestamp. Cadences use 6
// whitespace-separated fields (seconds, minutes, hours, day-of-month,
// month, day-of-week) with an optional 7th year field, matching the
// format create_task accepts.
package cadence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCadence is returned for any lexically or semantically
// rejected cadence string.
var ErrInvalidCadence = errors.New("cadence: invalid expression")

// maxYearSearch bounds how many 6-field occurrences are probed looking
// for one that also satisfies an optional year field, so a cadence like
// "0 0 0 1 1 * 2099" that never matches nearby years cannot spin forever.
const maxYearSearch = 200

// Cadence is a parsed, immutable cron-style expression.
type Cadence struct {
	raw      string
	schedule cron.Schedule
	year     *yearField
}

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse validates and compiles a cadence string. It accepts 6 fields
// (seconds through day-of-week) or 7 (with a trailing year field).
func Parse(expr string) (Cadence, error) {
	fields := strings.Fields(expr)
	switch len(fields) {
	case 6:
		sched, err := parser.Parse(expr)
		if err != nil {
			return Cadence{}, fmt.Errorf("%w: %v", ErrInvalidCadence, err)
		}
		return Cadence{raw: expr, schedule: sched}, nil
	case 7:
		sched, err := parser.Parse(strings.Join(fields[:6], " "))
		if err != nil {
			return Cadence{}, fmt.Errorf("%w: %v", ErrInvalidCadence, err)
		}
		yf, err := parseYearField(fields[6])
		if err != nil {
			return Cadence{}, err
		}
		return Cadence{raw: expr, schedule: sched, year: yf}, nil
	default:
		return Cadence{}, fmt.Errorf("%w: expected 6 or 7 fields, got %d", ErrInvalidCadence, len(fields))
	}
}

// String returns the original cadence text.
func (c Cadence) String() string {
	return c.raw
}

// Next returns the smallest instant strictly after ref that matches the
// cadence. The result is a monotonic function of ref only; it never
// consults wall-clock or host state.
func (c Cadence) Next(ref time.Time) (time.Time, error) {
	next := c.schedule.Next(ref)
	if c.year == nil {
		return next, nil
	}
	for i := 0; i < maxYearSearch; i++ {
		if c.year.matches(next.Year()) {
			return next, nil
		}
		next = c.schedule.Next(next)
	}
	return time.Time{}, fmt.Errorf("%w: no matching year within search bound", ErrInvalidCadence)
}

// NextNanos is Next over nanosecond-since-epoch timestamps, the unit the
// scheduler engine uses internally.
func (c Cadence) NextNanos(refNanos uint64) (uint64, error) {
	ref := time.Unix(0, int64(refNanos)).UTC()
	next, err := c.Next(ref)
	if err != nil {
		return 0, err
	}
	return uint64(next.UnixNano()), nil
}

// yearField is a minimal matcher for the optional 7th field: "*", a
// single year, a list ("2026,2027"), a range ("2026-2030"), or a step
// ("*/5"). robfig/cron has no year field, so this is evaluated by hand.
type yearField struct {
	any    bool
	step   int
	values map[int]bool
	ranges [][2]int
}

func parseYearField(field string) (*yearField, error) {
	if field == "*" {
		return &yearField{any: true}, nil
	}
	yf := &yearField{values: map[int]bool{}}
	for _, part := range strings.Split(field, ",") {
		switch {
		case strings.HasPrefix(part, "*/"):
			n, err := strconv.Atoi(strings.TrimPrefix(part, "*/"))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: bad year step %q", ErrInvalidCadence, part)
			}
			yf.step = n
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			lo, err1 := strconv.Atoi(bounds[0])
			hi, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil || hi < lo {
				return nil, fmt.Errorf("%w: bad year range %q", ErrInvalidCadence, part)
			}
			yf.ranges = append(yf.ranges, [2]int{lo, hi})
		default:
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: bad year value %q", ErrInvalidCadence, part)
			}
			yf.values[n] = true
		}
	}
	return yf, nil
}

func (yf *yearField) matches(year int) bool {
	if yf.any {
		return true
	}
	if yf.step > 0 && year%yf.step == 0 {
		return true
	}
	if yf.values[year] {
		return true
	}
	for _, r := range yf.ranges {
		if year >= r[0] && year <= r[1] {
			return true
		}
	}
	return false
}
