package types

import "time"

// Transition identifies what happened to a node during a tick. Events replace
// ad hoc tracing: the scheduler collects them and tests assert on them.
type Transition string

const (
	TransitionActivated      Transition = "activated"
	TransitionCompleted      Transition = "completed"
	TransitionReArmed        Transition = "re_armed"
	TransitionOrderPlaced    Transition = "order_placed"
	TransitionPositionClosed Transition = "position_closed"
	TransitionRetry          Transition = "retry"
	TransitionExhausted      Transition = "exhausted"
	TransitionEvalError      Transition = "eval_error"
)

// ExecutionEvent is one structured record of node activity.
type ExecutionEvent struct {
	Tick       int        `yaml:"tick" json:"tick"`
	Time       time.Time  `yaml:"time" json:"time"`
	StrategyID string     `yaml:"strategy_id" json:"strategy_id"`
	NodeID     string     `yaml:"node_id" json:"node_id"`
	Transition Transition `yaml:"transition" json:"transition"`
	Reason     string     `yaml:"reason,omitempty" json:"reason,omitempty"`
}
