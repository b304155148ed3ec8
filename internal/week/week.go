// Package week maps calendar dates to ISO-week document keys and builds the
// default contents of a new week.
package week

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/starford/calendle/internal/document"
)

// DateLayout is the on-disk and wire format of day dates.
const DateLayout = "2006-01-02"

var keyRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)

// KeyOf returns the "{isoWeekYear}-{isoWeek}" key of the ISO week containing t.
func KeyOf(t time.Time) string {
	year, wk := t.ISOWeek()
	return fmt.Sprintf("%d-%d", year, wk)
}

// StartOf returns midnight of the Monday on or before t, in t's location.
func StartOf(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// Default returns seven day entries starting at start, each holding one
// empty todo bullet with an id from newID.
func Default(start time.Time, newID func() string) document.Week {
	days := make(document.Week, document.DaysPerWeek)
	for i := range days {
		d := start.AddDate(0, 0, i)
		days[i] = document.Day{
			Name:    d.Weekday().String(),
			Date:    d.Format(DateLayout),
			Bullets: []document.Bullet{document.EmptyBullet(newID())},
		}
	}
	return days
}

// IsKey reports whether s has the shape of a week key.
func IsKey(s string) bool {
	return keyRe.MatchString(s)
}

// ParseKey returns the Monday (UTC midnight) of the week named by key.
func ParseKey(key string) (time.Time, error) {
	m := keyRe.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, fmt.Errorf("week: malformed key %q", key)
	}
	year, _ := strconv.Atoi(m[1])
	wk, _ := strconv.Atoi(m[2])
	if wk < 1 || wk > 53 {
		return time.Time{}, fmt.Errorf("week: week number out of range in %q", key)
	}
	// January 4th always falls in ISO week 1.
	first := StartOf(time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC))
	monday := first.AddDate(0, 0, (wk-1)*7)
	if KeyOf(monday) != fmt.Sprintf("%d-%d", year, wk) {
		return time.Time{}, fmt.Errorf("week: %d has no week %d", year, wk)
	}
	return monday, nil
}

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("week: invalid date %q: %w", s, err)
	}
	return t, nil
}
