// Package record implements an order-preserving JSON object for tabular
// payloads. Go maps do not keep key order, but redacted output must carry
// the same keys in the same order as the input payload, with untouched
// values (including non-string scalars) round-tripping byte-for-byte.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type entry struct {
	raw json.RawMessage // original encoding, emitted verbatim unless replaced
	str string          // replacement string value
	rep bool            // true when str replaces raw
}

// Record is an ordered mapping from field name to JSON value.
type Record struct {
	keys    []string
	entries map[string]entry
}

// New returns an empty record.
func New() *Record {
	return &Record{entries: make(map[string]entry)}
}

// Decode parses a JSON object, preserving key order. On duplicate keys the
// last value wins (matching encoding/json), with the key keeping its first
// position.
func Decode(data []byte) (*Record, error) {
	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decoding record payload: %w", err)
	}

	keys, err := keyOrder(data)
	if err != nil {
		return nil, err
	}

	r := New()
	for _, k := range keys {
		if _, seen := r.entries[k]; seen {
			continue
		}
		r.keys = append(r.keys, k)
		r.entries[k] = entry{raw: values[k]}
	}
	return r, nil
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// Keys returns the field names in payload order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// StringValue returns the decoded string for key. ok is false when the key
// is absent or the value is not a JSON string.
func (r *Record) StringValue(key string) (value string, ok bool) {
	e, exists := r.entries[key]
	if !exists {
		return "", false
	}
	if e.rep {
		return e.str, true
	}
	if len(e.raw) == 0 || e.raw[0] != '"' {
		return "", false
	}
	if err := json.Unmarshal(e.raw, &value); err != nil {
		return "", false
	}
	return value, true
}

// Clone returns an independent copy sharing the original raw values.
func (r *Record) Clone() *Record {
	c := New()
	c.keys = append(c.keys, r.keys...)
	for k, e := range r.entries {
		c.entries[k] = e
	}
	return c
}

// SetString replaces the value under key with a string. Unknown keys are
// appended in insertion order.
func (r *Record) SetString(key, value string) {
	if _, exists := r.entries[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.entries[key] = entry{str: value, rep: true}
}

// MarshalJSON encodes the record as a JSON object in key order. Values
// never replaced via SetString are emitted with their original encoding.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		e := r.entries[k]
		if e.rep {
			vb, err := json.Marshal(e.str)
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		} else {
			buf.Write(e.raw)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// keyOrder scans a JSON object's top-level keys in document order.
func keyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding record payload: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("record payload is not a JSON object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding record payload: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("record payload has non-string key")
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return nil, fmt.Errorf("decoding record payload: %w", err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decoding record payload: %w", err)
	}
	return keys, nil
}

// skipValue consumes one JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return nil
	}
	for dec.More() {
		if d == '{' {
			if _, err := dec.Token(); err != nil {
				return err
			}
		}
		if err := skipValue(dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
