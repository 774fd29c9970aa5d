// Package schedule parses five-field cron expressions and runs the
// pipelines on them from a single goroutine.
package schedule

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// Spec is a parsed cron expression. Each field is a bitmask of allowed
// values.
type Spec struct {
	minute, hour, dom, month, dow uint64
	expr                          string
}

type bounds struct {
	name     string
	min, max int
}

var fieldBounds = [5]bounds{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

var descriptors = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
}

// Parse accepts "minute hour day-of-month month day-of-week" with *, lists,
// ranges and steps, or one of the @hourly/@daily/@weekly/@monthly
// shorthands.
func Parse(expr string) (*Spec, error) {
	expr = strings.TrimSpace(expr)
	src := expr
	if d, ok := descriptors[expr]; ok {
		src = d
	}
	fields := strings.Fields(src)
	if len(fields) != 5 {
		return nil, fmt.Errorf("schedule %q: expected 5 fields, got %d", expr, len(fields))
	}
	var masks [5]uint64
	for i, f := range fields {
		m, err := parseField(f, fieldBounds[i])
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %s: %w", expr, fieldBounds[i].name, err)
		}
		masks[i] = m
	}
	return &Spec{minute: masks[0], hour: masks[1], dom: masks[2], month: masks[3], dow: masks[4], expr: expr}, nil
}

func (s *Spec) String() string { return s.expr }

func has(mask uint64, v int) bool { return mask&(1<<uint(v)) != 0 }

// Next returns the first matching minute strictly after from, in from's
// location. Both day fields must match. The zero time means no match
// within four years.
func (s *Spec) Next(from time.Time) time.Time {
	t := from.Truncate(time.Minute).Add(time.Minute)
	loc := t.Location()
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		switch {
		case !has(s.month, int(t.Month())):
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
		case !has(s.dom, t.Day()) || !has(s.dow, int(t.Weekday())):
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
		case !has(s.hour, t.Hour()):
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
		case !has(s.minute, t.Minute()):
			t = t.Add(time.Minute)
		default:
			return t
		}
	}
	return time.Time{}
}

// values lists the allowed values of a field, lowest first.
func values(mask uint64) []int {
	var out []int
	for mask != 0 {
		v := bits.TrailingZeros64(mask)
		out = append(out, v)
		mask &^= 1 << uint(v)
	}
	return out
}

func parseField(field string, b bounds) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(field, ",") {
		m, err := parsePart(part, b)
		if err != nil {
			return 0, err
		}
		mask |= m
	}
	if mask == 0 {
		return 0, fmt.Errorf("empty field")
	}
	return mask, nil
}

func parsePart(part string, b bounds) (uint64, error) {
	step := 1
	stepped := false
	if i := strings.IndexByte(part, '/'); i >= 0 {
		n, err := strconv.Atoi(part[i+1:])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step %q", part[i+1:])
		}
		step, stepped = n, true
		part = part[:i]
	}

	lo, hi := b.min, b.max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		i := strings.IndexByte(part, '-')
		var err error
		if lo, err = strconv.Atoi(part[:i]); err != nil {
			return 0, fmt.Errorf("invalid range start %q", part[:i])
		}
		if hi, err = strconv.Atoi(part[i+1:]); err != nil {
			return 0, fmt.Errorf("invalid range end %q", part[i+1:])
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", part)
		}
		lo = v
		if !stepped {
			hi = v
		}
	}
	if lo < b.min || hi > b.max || lo > hi {
		return 0, fmt.Errorf("%d-%d out of bounds [%d, %d]", lo, hi, b.min, b.max)
	}

	var mask uint64
	for v := lo; v <= hi; v += step {
		mask |= 1 << uint(v)
	}
	return mask, nil
}
