package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// shelf keeps the items of one category in insertion order.
type shelf struct {
	names []string
	items map[string]Quantity
}

func newShelf() *shelf {
	return &shelf{items: make(map[string]Quantity)}
}

// Snapshot is a point-in-time view of categorized quantities. Categories and
// items keep insertion order. No item with a zero amount is ever stored.
//
// A Snapshot is not safe for concurrent mutation; inventory.Service hands out
// clones to readers.
type Snapshot struct {
	order   []Category
	shelves map[Category]*shelf
}

// NewSnapshot creates an empty snapshot holding the given categories.
func NewSnapshot(categories ...Category) *Snapshot {
	s := &Snapshot{shelves: make(map[Category]*shelf)}
	for _, c := range categories {
		s.AddCategory(c)
	}
	return s
}

// AddCategory registers an empty category if it is not present yet.
func (s *Snapshot) AddCategory(c Category) {
	if _, ok := s.shelves[c]; ok {
		return
	}
	s.order = append(s.order, c)
	s.shelves[c] = newShelf()
}

// Categories returns the categories in order.
func (s *Snapshot) Categories() []Category {
	out := make([]Category, len(s.order))
	copy(out, s.order)
	return out
}

// HasCategory reports whether c is part of the snapshot.
func (s *Snapshot) HasCategory(c Category) bool {
	_, ok := s.shelves[c]
	return ok
}

// Get returns the quantity stored for (category, name).
func (s *Snapshot) Get(c Category, name string) (Quantity, bool) {
	sh, ok := s.shelves[c]
	if !ok {
		return Quantity{}, false
	}
	q, ok := sh.items[name]
	return q, ok
}

// Items returns the items of a category in insertion order.
func (s *Snapshot) Items(c Category) []Item {
	sh, ok := s.shelves[c]
	if !ok {
		return nil
	}
	out := make([]Item, 0, len(sh.names))
	for _, name := range sh.names {
		out = append(out, Item{Name: name, Quantity: sh.items[name]})
	}
	return out
}

// Set stores q under (category, name), adding the category if needed.
// Overwriting keeps the original position. A zero quantity deletes the item.
func (s *Snapshot) Set(c Category, name string, q Quantity) {
	if q.IsZero() {
		s.Delete(c, name)
		return
	}
	s.AddCategory(c)
	sh := s.shelves[c]
	if _, exists := sh.items[name]; !exists {
		sh.names = append(sh.names, name)
	}
	sh.items[name] = q
}

// Delete removes (category, name) and reports whether it was present.
func (s *Snapshot) Delete(c Category, name string) bool {
	sh, ok := s.shelves[c]
	if !ok {
		return false
	}
	if _, ok := sh.items[name]; !ok {
		return false
	}
	delete(sh.items, name)
	for i, n := range sh.names {
		if n == name {
			sh.names = append(sh.names[:i], sh.names[i+1:]...)
			break
		}
	}
	return true
}

// Len counts items across all categories.
func (s *Snapshot) Len() int {
	n := 0
	for _, sh := range s.shelves {
		n += len(sh.names)
	}
	return n
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := NewSnapshot(s.order...)
	for _, c := range s.order {
		for _, it := range s.Items(c) {
			out.Set(c, it.Name, it.Quantity)
		}
	}
	return out
}

// Equal compares categories, item order and quantities.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if len(s.order) != len(other.order) {
		return false
	}
	for i, c := range s.order {
		if other.order[i] != c {
			return false
		}
		a, b := s.Items(c), other.Items(c)
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j].Name != b[j].Name || !a[j].Quantity.Equal(b[j].Quantity) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON writes {"category": {"item": "<amount> <unit>"}} preserving order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(c))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteByte('{')
		for j, it := range s.Items(c) {
			if j > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(it.Name)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(it.Quantity.String())
			if err != nil {
				return nil, err
			}
			buf.Write(name)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the document written by MarshalJSON, keeping key order.
// Zero quantities in the document are dropped.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	fresh := NewSnapshot()
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		category, err := readKey(dec)
		if err != nil {
			return err
		}
		c := Category(category)
		fresh.AddCategory(c)
		if err := expectDelim(dec, '{'); err != nil {
			return err
		}
		for dec.More() {
			name, err := readKey(dec)
			if err != nil {
				return err
			}
			var text string
			if err := dec.Decode(&text); err != nil {
				return fmt.Errorf("models: item %s/%s: %w", category, name, err)
			}
			q, err := ParseQuantity(text)
			if err != nil {
				return fmt.Errorf("models: item %s/%s: %w", category, name, err)
			}
			fresh.Set(c, name, q)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	*s = *fresh
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("models: read snapshot: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("models: read snapshot: expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("models: read snapshot: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("models: read snapshot: expected key, got %v", tok)
	}
	return key, nil
}
