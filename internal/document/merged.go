package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when a merged payload has no elements.
var ErrEmptyPayload = errors.New("payload is empty")

// Merged is the shape exchanged with the presentation layer: the seven days
// of a week followed by one list document, encoded as a single JSON array.
type Merged struct {
	Days Week
	List List
}

// MarshalJSON encodes m as [day0, ..., day6, list].
func (m Merged) MarshalJSON() ([]byte, error) {
	elems := make([]any, 0, len(m.Days)+1)
	for _, d := range m.Days {
		elems = append(elems, d)
	}
	elems = append(elems, m.List)
	return json.Marshal(elems)
}

// UnmarshalJSON decodes a JSON array whose last element is the list document
// and whose remaining elements are day entries. It checks shape only; list
// names and dates are validated by the caller.
func (m *Merged) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return errors.New("payload is not an array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if len(elems) == 0 {
		return ErrEmptyPayload
	}
	for i, e := range elems {
		if v := bytes.TrimSpace(e); len(v) == 0 || v[0] != '{' {
			return fmt.Errorf("element %d is not an object", i)
		}
	}

	last := len(elems) - 1
	list, err := DecodeList(elems[last])
	if err != nil {
		return err
	}
	raw := make([]RawDay, last)
	for i := 0; i < last; i++ {
		if err := json.Unmarshal(elems[i], &raw[i]); err != nil {
			return fmt.Errorf("decode day %d: %w", i, err)
		}
	}
	days, _, err := MigrateLegacyIndent(raw)
	if err != nil {
		return err
	}
	m.Days = days
	m.List = list
	return nil
}
