// Package security implements the tool-call sanitization pipeline (spec.md
// §4.C): scanning argument/result JSON for prompt-injection, command-
// injection, and script-injection markers, then applying a configured
// policy (remove/neutralize/block) to the findings.
package security

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"
)

// Scan walks every string leaf of a JSON document (object/array nesting of
// any depth) using gjson, without requiring a fixed Go struct, and returns
// every Finding across all leaves.
func Scan(jsonDoc []byte) []Finding {
	if len(jsonDoc) == 0 {
		return nil
	}
	parsed := gjson.ParseBytes(jsonDoc)
	var findings []Finding
	walk(parsed, "$", &findings)
	return findings
}

// ScanValue marshals an arbitrary Go value to JSON and scans it; convenient
// for scanning tool arguments already decoded into map[string]any.
func ScanValue(v any) ([]Finding, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Scan(doc), nil
}

func walk(v gjson.Result, path string, out *[]Finding) {
	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			walk(value, path+"."+key.String(), out)
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, value gjson.Result) bool {
			walk(value, path+"["+strconv.Itoa(i)+"]", out)
			i++
			return true
		})
	case v.Type == gjson.String:
		*out = append(*out, scanText(path, v.String())...)
	}
}
