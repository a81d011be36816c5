// Package condition compiles and evaluates rule condition trees.
package condition

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"docflow/model"
	"docflow/util"
)

var operators = map[model.Operator]struct{}{
	model.OP_EQ:            {},
	model.OP_NEQ:           {},
	model.OP_GT:            {},
	model.OP_GTE:           {},
	model.OP_LT:            {},
	model.OP_LTE:           {},
	model.OP_CONTAINS:      {},
	model.OP_MATCHES_REGEX: {},
	model.OP_IS_EMPTY:      {},
}

// LeafMatch records a leaf that evaluated true, for the audit trail.
type LeafMatch struct {
	Field    string         `json:"field"`
	Operator model.Operator `json:"operator"`
	Value    any            `json:"value,omitempty"`
	Actual   any            `json:"actual,omitempty"`
}

// Compiled is an immutable, evaluation-ready condition tree. Regex
// leaves are compiled once here, never during evaluation.
type Compiled struct {
	all  []*Compiled
	any  []*Compiled
	leaf *leaf
}

type leaf struct {
	field    string
	operator model.Operator
	value    any
	pattern  *regexp.Regexp
}

// Compile validates the tree shape and precompiles regex leaves.
// Malformed patterns come back as model.InvalidRulePatternError.
func Compile(cond model.Condition) (*Compiled, error) {
	if len(cond.All) > 0 && len(cond.Any) > 0 {
		return nil, fmt.Errorf("condition node sets both all and any")
	}
	if len(cond.All) > 0 || len(cond.Any) > 0 {
		if cond.Field != "" || cond.Operator != "" {
			return nil, fmt.Errorf("composite condition node also sets leaf fields")
		}
		children := cond.All
		if len(cond.Any) > 0 {
			children = cond.Any
		}
		compiled := make([]*Compiled, 0, len(children))
		for _, child := range children {
			cc, err := Compile(child)
			if err != nil {
				return nil, err
			}
			compiled = append(compiled, cc)
		}
		if len(cond.All) > 0 {
			return &Compiled{all: compiled}, nil
		}
		return &Compiled{any: compiled}, nil
	}
	return compileLeaf(cond)
}

func compileLeaf(cond model.Condition) (*Compiled, error) {
	if cond.Field == "" {
		return nil, fmt.Errorf("condition leaf missing field")
	}
	if _, ok := operators[cond.Operator]; !ok {
		return nil, fmt.Errorf("condition leaf %s has unknown operator %s", cond.Field, cond.Operator)
	}
	lf := &leaf{field: cond.Field, operator: cond.Operator, value: cond.Value}
	if cond.Operator == model.OP_MATCHES_REGEX {
		expr, ok := cond.Value.(string)
		if !ok {
			return nil, model.InvalidRulePatternError{Pattern: fmt.Sprintf("%v", cond.Value), Reason: "pattern must be a string"}
		}
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return nil, model.InvalidRulePatternError{Pattern: expr, Reason: err.Error()}
		}
		lf.pattern = pattern
	}
	return &Compiled{leaf: lf}, nil
}

// Evaluate walks the tree against the event data. AND and OR nodes
// short-circuit. It never returns an error: an unresolved field path
// simply fails its leaf.
func (c *Compiled) Evaluate(data map[string]any) (bool, []LeafMatch) {
	var matched []LeafMatch
	ok := c.eval(data, &matched)
	return ok, matched
}

func (c *Compiled) eval(data map[string]any, matched *[]LeafMatch) bool {
	switch {
	case len(c.all) > 0:
		for _, child := range c.all {
			if !child.eval(data, matched) {
				return false
			}
		}
		return true
	case len(c.any) > 0:
		for _, child := range c.any {
			if child.eval(data, matched) {
				return true
			}
		}
		return false
	default:
		return c.leaf.eval(data, matched)
	}
}

func (l *leaf) eval(data map[string]any, matched *[]LeafMatch) bool {
	actual, err := util.Lookup(data, l.field)
	if err != nil {
		return false
	}
	if !l.compare(actual) {
		return false
	}
	*matched = append(*matched, LeafMatch{Field: l.field, Operator: l.operator, Value: l.value, Actual: actual})
	return true
}

func (l *leaf) compare(actual any) bool {
	switch l.operator {
	case model.OP_EQ:
		return equals(actual, l.value)
	case model.OP_NEQ:
		return !equals(actual, l.value)
	case model.OP_GT, model.OP_GTE, model.OP_LT, model.OP_LTE:
		af, aok := util.ToFloat(actual)
		vf, vok := util.ToFloat(l.value)
		if !aok || !vok {
			return false
		}
		switch l.operator {
		case model.OP_GT:
			return af > vf
		case model.OP_GTE:
			return af >= vf
		case model.OP_LT:
			return af < vf
		default:
			return af <= vf
		}
	case model.OP_CONTAINS:
		return contains(actual, l.value)
	case model.OP_MATCHES_REGEX:
		return l.pattern.MatchString(stringify(actual))
	case model.OP_IS_EMPTY:
		return isEmpty(actual)
	}
	return false
}

// equals compares numerically when both sides coerce to float64,
// otherwise by string form.
func equals(a, b any) bool {
	af, aok := util.ToFloat(a)
	bf, bok := util.ToFloat(b)
	if aok && bok {
		return af == bf
	}
	return stringify(a) == stringify(b)
}

func contains(actual, value any) bool {
	switch t := actual.(type) {
	case string:
		return strings.Contains(t, stringify(value))
	case map[string]any:
		_, ok := t[stringify(value)]
		return ok
	}
	rv := reflect.ValueOf(actual)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			if equals(rv.Index(i).Interface(), value) {
				return true
			}
		}
	}
	return false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
