package types

// CompareOp is a comparison operator in a condition leaf.
type CompareOp string

const (
	CompareGT  CompareOp = "gt"
	CompareGTE CompareOp = "gte"
	CompareLT  CompareOp = "lt"
	CompareLTE CompareOp = "lte"
	CompareEQ  CompareOp = "eq"
	CompareNEQ CompareOp = "neq"
)

// OperandKind names where a comparison operand's value comes from.
type OperandKind string

const (
	// OperandLTP resolves to the last traded price of the strategy symbol.
	OperandLTP OperandKind = "ltp"
	// OperandPrevOpen..OperandPrevVolume resolve to fields of the previous
	// completed bar of the strategy's (symbol, interval).
	OperandPrevOpen   OperandKind = "prev_open"
	OperandPrevHigh   OperandKind = "prev_high"
	OperandPrevLow    OperandKind = "prev_low"
	OperandPrevClose  OperandKind = "prev_close"
	OperandPrevVolume OperandKind = "prev_volume"
	// OperandIndicator resolves the named indicator via the market cache.
	OperandIndicator OperandKind = "indicator"
	// OperandNodeVar resolves a variable recorded by another node in the same
	// strategy instance; Name is "<node_id>.<var>".
	OperandNodeVar OperandKind = "node_var"
	// OperandLiteral is a numeric constant.
	OperandLiteral OperandKind = "literal"
)

// Operand is one side of a comparison.
type Operand struct {
	Kind OperandKind `yaml:"kind" json:"kind" validate:"required"`
	// Name carries the indicator name or "<node_id>.<var>" reference.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Value is the literal constant for OperandLiteral.
	Value float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// Condition is a boolean tree over market/node-variable operands. A node is
// either a logical combinator (exactly one of All/Any/Not set) or a leaf
// comparison (Op/Left/Right set). The engine treats trees opaquely and hands
// them to the evaluator capability.
type Condition struct {
	All []Condition `yaml:"all,omitempty" json:"all,omitempty"`
	Any []Condition `yaml:"any,omitempty" json:"any,omitempty"`
	Not *Condition  `yaml:"not,omitempty" json:"not,omitempty"`

	Op    CompareOp `yaml:"op,omitempty" json:"op,omitempty"`
	Left  *Operand  `yaml:"left,omitempty" json:"left,omitempty"`
	Right *Operand  `yaml:"right,omitempty" json:"right,omitempty"`
}

// IsLeaf reports whether the condition is a plain comparison.
func (c *Condition) IsLeaf() bool {
	return len(c.All) == 0 && len(c.Any) == 0 && c.Not == nil
}
