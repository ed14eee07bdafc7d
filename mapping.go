package redactor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// MappingEntry is one placeholder-to-original pair in a mapping table.
type MappingEntry struct {
	Token string `json:"token"`
	Value string `json:"value"`
}

// Mapping is the reversible substitution table returned by Redact. Entries
// are kept in placeholder insertion order (the order entities were first
// seen left-to-right), and keys are unique. The table is plain
// string-to-string data: callers can serialize it (JSON object, insertion
// order preserved) and restore in a different process much later.
type Mapping struct {
	entries []MappingEntry
	index   map[string]int
}

// NewMapping returns an empty mapping table.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[string]int)}
}

// Set records a placeholder-to-value pair. Setting an existing token
// overwrites its value in place without changing its position.
func (m *Mapping) Set(token, value string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[token]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[token] = len(m.entries)
	m.entries = append(m.entries, MappingEntry{Token: token, Value: value})
}

// Get returns the original value for a placeholder token.
func (m *Mapping) Get(token string) (string, bool) {
	if m == nil || m.index == nil {
		return "", false
	}
	i, ok := m.index[token]
	if !ok {
		return "", false
	}
	return m.entries[i].Value, true
}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the table in insertion order.
func (m *Mapping) Entries() []MappingEntry {
	if m == nil {
		return nil
	}
	out := make([]MappingEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Tokens returns the placeholder tokens in insertion order.
func (m *Mapping) Tokens() []string {
	if m == nil {
		return nil
	}
	tokens := make([]string, len(m.entries))
	for i, e := range m.entries {
		tokens[i] = e.Token
	}
	return tokens
}

// MarshalJSON encodes the mapping as a JSON object whose keys appear in
// insertion order. encoding/json sorts map keys, so the object is built by
// hand from the ordered entries.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Token)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the mapping, preserving the
// key order of the document.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("mapping: expected JSON object, got %v", tok)
	}

	m.entries = nil
	m.index = make(map[string]int)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("mapping: non-string key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("mapping: value for %q: %w", key, err)
		}
		m.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// resolveOverlaps applies the deterministic overlap policy: sort by
// (start asc, span length desc, score desc), then greedily accept any match
// that does not share a character with an already-accepted one. The result
// is a non-overlapping, left-to-right ordered span list that is stable for
// identical input.
func resolveOverlaps(matches []RawMatch) []RawMatch {
	if len(matches) == 0 {
		return nil
	}

	sorted := make([]RawMatch, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		lenI := sorted[i].End - sorted[i].Start
		lenJ := sorted[j].End - sorted[j].Start
		if lenI != lenJ {
			return lenI > lenJ
		}
		return sorted[i].Score > sorted[j].Score
	})

	accepted := sorted[:0:0]
	lastEnd := -1
	for _, m := range sorted {
		if m.Start >= lastEnd {
			accepted = append(accepted, m)
			lastEnd = m.End
		}
	}
	return accepted
}
