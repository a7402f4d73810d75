package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// Records written by older releases store sizes and ids either as JSON strings or as
// JSON numbers. Size and Ref accept both and marshal as strings; the records holding them
// keep the original tokens so stored data keeps its shape.

// Size is a size label such as "1g", "3.5" or "unit".
type Size string

func (s *Size) UnmarshalJSON(b []byte) error {
	v, err := decodeLoose(b)
	if err != nil {
		return fmt.Errorf("domain: invalid size: %w", err)
	}
	*s = Size(v)
	return nil
}

func (s Size) String() string { return string(s) }

// Ref is an identifier coming from persisted records.
type Ref string

func (r *Ref) UnmarshalJSON(b []byte) error {
	v, err := decodeLoose(b)
	if err != nil {
		return fmt.Errorf("domain: invalid reference: %w", err)
	}
	*r = Ref(v)
	return nil
}

func (r Ref) String() string { return string(r) }

func decodeLoose(b []byte) (string, error) {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return "", err
	}
	if raw == nil {
		return "", nil
	}
	switch raw.(type) {
	case string, float64, bool:
		return cast.ToStringE(raw)
	}
	return "", fmt.Errorf("unsupported JSON value %s", string(b))
}

// rawTokens keeps the original JSON of loose fields that were not strings, so a record
// is written back with the numbers (or nulls) it was read with.
type rawTokens map[string]json.RawMessage

// splitRecord decodes b into its keys and returns the keys outside known together with
// the non-string tokens of the loose keys.
func splitRecord(b []byte, known, loose []string) (map[string]json.RawMessage, rawTokens, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, nil, err
	}
	var tokens rawTokens
	for _, k := range loose {
		raw, ok := all[k]
		if !ok {
			continue
		}
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '"' {
			continue
		}
		if tokens == nil {
			tokens = rawTokens{}
		}
		tokens[k] = raw
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}
	return all, tokens, nil
}

// joinRecord merges the marshalled known fields with extra keys and restores every kept
// token whose value is still current[key].
func joinRecord(known []byte, extra map[string]json.RawMessage, tokens rawTokens, current map[string]string) ([]byte, error) {
	if len(extra) == 0 && len(tokens) == 0 {
		return known, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, raw := range tokens {
		if _, ok := fields[k]; !ok {
			continue
		}
		if v, err := decodeLoose(raw); err == nil && v == current[k] {
			fields[k] = raw
		}
	}
	merged := make(map[string]json.RawMessage, len(extra)+len(fields))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
