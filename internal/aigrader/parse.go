package aigrader

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object in model output")

var fencedJSON = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseJSONLoose reads a JSON object from model output that may be wrapped in
// prose or a code fence. It tries the whole text, then a fenced block, then
// the first balanced object.
func parseJSONLoose(text string) (map[string]any, error) {
	if obj, ok := decodeObject(text); ok {
		return obj, nil
	}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if obj, ok := decodeObject(m[1]); ok {
			return obj, nil
		}
	}
	if candidate, ok := firstBalancedObject(text); ok {
		if obj, ok := decodeObject(candidate); ok {
			return obj, nil
		}
	}
	return nil, errNoJSONObject
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
