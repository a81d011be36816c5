package util

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat coerces numbers and numeric strings. JSON-decoded contexts
// carry float64, handwritten ones carry ints, extracted field values
// arrive as strings; comparisons treat them alike.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
