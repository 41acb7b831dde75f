// Package jsonpath resolves JSONPath-like expressions against response bodies.
package jsonpath

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Lookup resolves path against a JSON document and returns the value as a
// plain Go value (map[string]interface{}, []interface{}, float64, string,
// bool or nil). The boolean is false when the path does not exist.
func Lookup(json string, path string) (interface{}, bool) {
	if json == "" || path == "" {
		return nil, false
	}

	result := gjson.Get(json, toGjsonPath(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// toGjsonPath converts "$.users[0].name" style expressions to gjson's
// "users.0.name". Plain gjson paths pass through unchanged.
func toGjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	// $['name'] and $["name"]
	path = strings.NewReplacer(`['`, ".", `']`, "", `["`, ".", `"]`, "").Replace(path)

	// [n] -> .n
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)

	return strings.TrimPrefix(path, ".")
}
