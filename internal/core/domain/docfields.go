package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MergeFields applies field updates to a JSON object document. Keys are
// dotted paths ("k.parsedAt"); intermediate objects are created as needed.
// Paths are applied in sorted order so the result is deterministic.
func MergeFields(doc []byte, fields map[string]any) ([]byte, error) {
	obj := map[string]any{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}

	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		value, err := normalizeValue(fields[path])
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", path, err)
		}
		if err := setPath(obj, path, value); err != nil {
			return nil, err
		}
	}
	return json.Marshal(obj)
}

func setPath(obj map[string]any, path string, value any) error {
	parts := strings.Split(path, ".")
	cur := obj
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("%w: field path %q", ErrInvalidInput, path)
		}
		if i == len(parts)-1 {
			cur[part] = value
			return nil
		}
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	return nil
}

// normalizeValue round-trips v through JSON so stored documents only hold
// JSON-shaped values.
func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
