package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// FieldChange is one before/after entry in a reviewer-facing diff.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// Diff compares two entity snapshots field by field. A field is included
// exactly when its values differ under deep structural equality, so nested
// objects and arrays (feature lists, banner sub-objects) compare by content.
//
// Only fields named in newData are reported: approval applies newData as an
// RFC 7386 merge patch, which leaves fields absent from the patch unchanged,
// so an absent field is not a removal. An explicit null in newData is a
// removal and shows up as old → nil.
//
// Ordering is stable and deterministic: fields follow the key order of
// newData as written. Nil snapshots are treated as empty.
func Diff(oldData, newData json.RawMessage) ([]FieldChange, error) {
	oldMap, err := decodeSnapshot(oldData)
	if err != nil {
		return nil, fmt.Errorf("decode old snapshot: %w", err)
	}
	newMap, err := decodeSnapshot(newData)
	if err != nil {
		return nil, fmt.Errorf("decode new snapshot: %w", err)
	}

	newKeys, err := topLevelKeys(newData)
	if err != nil {
		return nil, fmt.Errorf("scan new snapshot keys: %w", err)
	}

	changes := []FieldChange{}
	for _, key := range newKeys {
		newVal := newMap[key]
		oldVal, inOld := oldMap[key]
		if inOld && reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		changes = append(changes, FieldChange{Field: key, OldValue: oldVal, NewValue: newVal})
	}
	return changes, nil
}

func decodeSnapshot(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// topLevelKeys returns the top-level object keys of raw in written order.
// Go maps do not preserve insertion order, so the order comes from a token
// scan of the raw JSON.
func topLevelKeys(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("snapshot is not a JSON object")
	}

	var keys []string
	seen := map[string]struct{}{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in snapshot", tok)
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// skipValue consumes one JSON value, descending through nested containers.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
