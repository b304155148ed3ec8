// Package document defines the planner's persisted documents and their JSON
// codec: week documents (seven day entries) and named list documents.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// StyleTodo is the style of a freshly created bullet.
const StyleTodo = "todo"

// DaysPerWeek is the number of day entries in a week document.
const DaysPerWeek = 7

// Kind tags the two document shapes stored side by side in the data directory.
type Kind string

const (
	KindWeek Kind = "week"
	KindList Kind = "list"
)

// Bullet is a single journal line.
type Bullet struct {
	ID     string `json:"id"`
	Style  string `json:"style"`
	Text   string `json:"text"`
	Indent int    `json:"indent"`
}

// Day is one dated entry of a week document.
type Day struct {
	Name    string   `json:"name"`
	Date    string   `json:"date"`
	Bullets []Bullet `json:"bullets"`
}

// Week is the ordered Monday to Sunday entries of one ISO week.
type Week []Day

// List is an undated backlog such as "someday". Date is always null on disk.
type List struct {
	Name    string   `json:"name"`
	Date    *string  `json:"date"`
	Bullets []Bullet `json:"bullets"`
}

// NewList returns a list document holding a single empty bullet.
func NewList(name, id string) List {
	return List{
		Name:    name,
		Bullets: []Bullet{EmptyBullet(id)},
	}
}

// EmptyBullet returns a blank todo bullet with the given id.
func EmptyBullet(id string) Bullet {
	return Bullet{ID: id, Style: StyleTodo, Indent: 0}
}

// Result is the outcome of Parse: exactly one of Week or List is set,
// according to Kind.
type Result struct {
	Kind     Kind
	Week     Week
	List     *List
	Migrated bool // legacy boolean indents were normalized
}

// Parse detects the document kind from the top-level JSON value and decodes
// it. Week documents go through MigrateLegacyIndent.
func Parse(data []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("document: empty content")
	}
	switch trimmed[0] {
	case '[':
		week, migrated, err := DecodeWeek(trimmed)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindWeek, Week: week, Migrated: migrated}, nil
	case '{':
		list, err := DecodeList(trimmed)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindList, List: &list}, nil
	default:
		return nil, fmt.Errorf("document: unexpected top-level value %q", trimmed[0])
	}
}

// DecodeWeek decodes a week document, normalizing legacy indents.
func DecodeWeek(data []byte) (Week, bool, error) {
	var raw []RawDay
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("document: decode week: %w", err)
	}
	return MigrateLegacyIndent(raw)
}

// DecodeList decodes a list document.
func DecodeList(data []byte) (List, error) {
	var raw struct {
		Name    string      `json:"name"`
		Date    *string     `json:"date"`
		Bullets []RawBullet `json:"bullets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return List{}, fmt.Errorf("document: decode list: %w", err)
	}
	bullets, err := normalizeBullets(raw.Bullets)
	if err != nil {
		return List{}, fmt.Errorf("document: list %q: %w", raw.Name, err)
	}
	return List{Name: raw.Name, Date: raw.Date, Bullets: bullets}, nil
}

// Encode renders v as JSON indented with two spaces.
func Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	return data, nil
}
