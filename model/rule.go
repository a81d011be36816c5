package model

type Operator string

const OP_EQ Operator = "EQ"
const OP_NEQ Operator = "NEQ"
const OP_GT Operator = "GT"
const OP_GTE Operator = "GTE"
const OP_LT Operator = "LT"
const OP_LTE Operator = "LTE"
const OP_CONTAINS Operator = "CONTAINS"
const OP_MATCHES_REGEX Operator = "MATCHES_REGEX"
const OP_IS_EMPTY Operator = "IS_EMPTY"

// Condition is a tree: either a leaf (Field set) or a combination of
// children under All (AND) or Any (OR). Field is a dotted path into a
// run context; a missing path fails the leaf, never the evaluation.
type Condition struct {
	All      []Condition `json:"all,omitempty"`
	Any      []Condition `json:"any,omitempty"`
	Field    string      `json:"field,omitempty"`
	Operator Operator    `json:"operator,omitempty"`
	Value    any         `json:"value,omitempty"`
}

func (c Condition) IsLeaf() bool {
	return len(c.Field) > 0
}

// Rule maps a condition tree to actions. All enabled rules are evaluated
// per context; matches contribute their actions in ascending priority
// order, ties broken by ascending id.
type Rule struct {
	Id        string      `json:"id"`
	Name      string      `json:"name"`
	Condition Condition   `json:"condition"`
	Actions   []ActionDef `json:"actions"`
	Priority  int         `json:"priority"`
	Enabled   bool        `json:"enabled"`
}
