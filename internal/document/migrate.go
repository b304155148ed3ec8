package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// MaxIndent is the deepest nesting level a bullet may carry.
const MaxIndent = 32

// RawBullet is a bullet as found on disk, before indent normalization.
// Older files stored indent as a boolean.
type RawBullet struct {
	ID     string          `json:"id"`
	Style  string          `json:"style"`
	Text   string          `json:"text"`
	Indent json.RawMessage `json:"indent"`
}

// RawDay is a day entry as found on disk.
type RawDay struct {
	Name    string      `json:"name"`
	Date    string      `json:"date"`
	Bullets []RawBullet `json:"bullets"`
}

// MigrateLegacyIndent converts on-disk day entries into a Week. A day whose
// first bullet carries a boolean indent has every bullet rewritten to 1
// (true) or 0 (false); numeric indents are kept as they are. The second
// return value reports whether any day needed the rewrite.
func MigrateLegacyIndent(days []RawDay) (Week, bool, error) {
	week := make(Week, len(days))
	migrated := false
	for i, d := range days {
		if len(d.Bullets) > 0 && isBool(d.Bullets[0].Indent) {
			migrated = true
		}
		bullets, err := normalizeBullets(d.Bullets)
		if err != nil {
			return nil, false, fmt.Errorf("document: day %s: %w", d.Date, err)
		}
		week[i] = Day{Name: d.Name, Date: d.Date, Bullets: bullets}
	}
	return week, migrated, nil
}

func normalizeBullets(raw []RawBullet) ([]Bullet, error) {
	out := make([]Bullet, len(raw))
	for i, b := range raw {
		indent, err := indentValue(b.Indent)
		if err != nil {
			return nil, fmt.Errorf("bullet %s: %w", b.ID, err)
		}
		out[i] = Bullet{ID: b.ID, Style: b.Style, Text: b.Text, Indent: indent}
	}
	return out, nil
}

func isBool(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return bytes.Equal(v, []byte("true")) || bytes.Equal(v, []byte("false"))
}

func indentValue(raw json.RawMessage) (int, error) {
	v := bytes.TrimSpace(raw)
	switch {
	case len(v) == 0, bytes.Equal(v, []byte("null")), bytes.Equal(v, []byte("false")):
		return 0, nil
	case bytes.Equal(v, []byte("true")):
		return 1, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, fmt.Errorf("indent %s is neither a number nor a boolean", v)
	}
	switch {
	case math.IsNaN(f), math.IsInf(f, 0), f != math.Trunc(f):
		return 0, fmt.Errorf("indent %s is not a whole number", v)
	case f < 0:
		return 0, fmt.Errorf("indent %s is negative", v)
	case f > MaxIndent:
		return 0, fmt.Errorf("indent %s exceeds %d", v, MaxIndent)
	}
	return int(f), nil
}
