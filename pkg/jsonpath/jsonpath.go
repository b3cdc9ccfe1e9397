// Package jsonpath evaluates a small JSONPath subset against JSON documents.
//
// Supported syntax:
//   - $ for the document root
//   - .name for object members
//   - ['name'] or ["name"] for members containing dots or brackets
//   - [n] for array elements
//
// Expressions are translated to gjson paths, so member names such as
// "p(95)" need no escaping: $.metrics.http_req_duration.values.p(95)
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Segments splits a JSONPath expression into its member names and indexes.
func Segments(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty JSONPath expression")
	}
	if path[0] != '$' {
		return nil, fmt.Errorf("JSONPath must start with $: %s", path)
	}

	var segs []string
	i := 1
	for i < len(path) {
		switch path[i] {
		case '.':
			j := i + 1
			for j < len(path) && path[j] != '.' && path[j] != '[' {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty member name at offset %d in %s", i, path)
			}
			segs = append(segs, path[i+1:j])
			i = j

		case '[':
			if i+1 < len(path) && (path[i+1] == '\'' || path[i+1] == '"') {
				quote := path[i+1]
				end := strings.IndexByte(path[i+2:], quote)
				if end < 0 {
					return nil, fmt.Errorf("unterminated quoted member at offset %d in %s", i, path)
				}
				k := i + 2 + end
				if k+1 >= len(path) || path[k+1] != ']' {
					return nil, fmt.Errorf("expected ] at offset %d in %s", k+1, path)
				}
				segs = append(segs, path[i+2:k])
				i = k + 2
				continue
			}

			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated index at offset %d in %s", i, path)
			}
			index := path[i+1 : i+end]
			if n, err := strconv.Atoi(index); err != nil || n < 0 {
				return nil, fmt.Errorf("invalid array index %q in %s", index, path)
			}
			segs = append(segs, index)
			i += end + 1

		default:
			return nil, fmt.Errorf("unexpected %q at offset %d in %s", path[i], i, path)
		}
	}
	return segs, nil
}

// ToGJSON converts a JSONPath expression to the equivalent gjson path.
func ToGJSON(path string) (string, error) {
	segs, err := Segments(path)
	if err != nil {
		return "", err
	}
	if len(segs) == 0 {
		return "@this", nil
	}

	escaped := make([]string, len(segs))
	for i, seg := range segs {
		escaped[i] = gjson.Escape(seg)
	}
	return strings.Join(escaped, "."), nil
}

// Get returns the value at path in doc.
func Get(doc []byte, path string) (gjson.Result, error) {
	if len(doc) == 0 {
		return gjson.Result{}, fmt.Errorf("empty JSON document")
	}
	if !gjson.ValidBytes(doc) {
		return gjson.Result{}, fmt.Errorf("invalid JSON document")
	}

	gpath, err := ToGJSON(path)
	if err != nil {
		return gjson.Result{}, err
	}

	result := gjson.GetBytes(doc, gpath)
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("path not found: %s", path)
	}
	return result, nil
}

// Extract returns the value at path in doc as a string. Objects and arrays
// are returned as raw JSON, null as "null".
func Extract(doc []byte, path string) (string, error) {
	result, err := Get(doc, path)
	if err != nil {
		return "", err
	}

	switch {
	case result.Type == gjson.Null:
		return "null", nil
	case result.IsObject(), result.IsArray():
		return result.Raw, nil
	default:
		return result.String(), nil
	}
}

// ExtractMultiple extracts several named paths. Values that were found are
// returned even when others fail; the error lists every failure.
func ExtractMultiple(doc []byte, paths map[string]string) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no JSONPath expressions provided")
	}

	results := make(map[string]string, len(paths))
	var failures []string

	for name, path := range paths {
		value, err := Extract(doc, path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		results[name] = value
	}

	if len(failures) > 0 {
		return results, fmt.Errorf("extraction errors: %s", strings.Join(failures, "; "))
	}
	return results, nil
}
