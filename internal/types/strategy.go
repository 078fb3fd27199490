package types

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tradelayout/tickgraph/pkg/errors"
)

// NodeType is the closed set of executable graph node kinds. Adding a kind
// requires an explicit case in the executor; unknown kinds are rejected at
// load time.
type NodeType string

const (
	NodeTypeController    NodeType = "controller"
	NodeTypeCondition     NodeType = "condition"
	NodeTypeEntrySignal   NodeType = "entry_signal"
	NodeTypeExitSignal    NodeType = "exit_signal"
	NodeTypeExit          NodeType = "exit"
	NodeTypeReEntrySignal NodeType = "re_entry_signal"
)

var knownNodeTypes = map[NodeType]bool{
	NodeTypeController:    true,
	NodeTypeCondition:     true,
	NodeTypeEntrySignal:   true,
	NodeTypeExitSignal:    true,
	NodeTypeExit:          true,
	NodeTypeReEntrySignal: true,
}

// NodeConfig carries the node-type-specific settings. Fields are consumed
// only by the node kinds that need them.
type NodeConfig struct {
	// VPI is the virtual position id an entry node opens transactions under.
	VPI string `yaml:"vpi,omitempty" json:"vpi,omitempty"`
	// TargetPositionVPI is the position an exit node closes.
	TargetPositionVPI string `yaml:"target_position_vpi,omitempty" json:"target_position_vpi,omitempty"`
	Side              Side   `yaml:"side,omitempty" json:"side,omitempty" validate:"omitempty,oneof=LONG SHORT"`
	Quantity          float64 `yaml:"quantity,omitempty" json:"quantity,omitempty" validate:"gte=0"`
	// MaxReEntries bounds the number of re-entries a ReEntrySignal emits.
	MaxReEntries int `yaml:"max_re_entries,omitempty" json:"max_re_entries,omitempty" validate:"gte=0"`
	// StrikeStep and StrikeOffset resolve the traded contract from the
	// reference price: round(ltp/step)*step + offset*step. A zero step means
	// the strategy symbol itself is traded.
	StrikeStep   float64 `yaml:"strike_step,omitempty" json:"strike_step,omitempty" validate:"gte=0"`
	StrikeOffset int     `yaml:"strike_offset,omitempty" json:"strike_offset,omitempty"`
	// FireOnce makes a condition node complete after its first true outcome
	// instead of re-checking every tick.
	FireOnce bool `yaml:"fire_once,omitempty" json:"fire_once,omitempty"`
	// ExitReason overrides the reason recorded by an exit node.
	ExitReason ExitReason `yaml:"exit_reason,omitempty" json:"exit_reason,omitempty" validate:"omitempty,oneof=signal time_based pnl_based session_end"`
	// Condition is the primary condition tree, passed opaquely to the
	// evaluator capability.
	Condition *Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
	// ReEntryCondition is the alternate exit condition set selected while the
	// lineage is in a re-entry window (reEntryNum > 0).
	ReEntryCondition *Condition `yaml:"re_entry_condition,omitempty" json:"re_entry_condition,omitempty"`
	// ReArmTargets are the node ids a ReEntrySignal re-arms.
	ReArmTargets []string `yaml:"re_arm_targets,omitempty" json:"re_arm_targets,omitempty"`
}

// NodeDefinition is the static shape of one graph node. Immutable after load;
// nodes reference each other by id only.
type NodeDefinition struct {
	ID       string     `yaml:"id" json:"id" validate:"required"`
	Type     NodeType   `yaml:"type" json:"type" validate:"required"`
	Children []string   `yaml:"children,omitempty" json:"children,omitempty"`
	Config   NodeConfig `yaml:"config,omitempty" json:"config,omitempty"`
}

// StrategyDefinition is one declarative strategy graph bound to a symbol and
// timeframe.
type StrategyDefinition struct {
	ID            string           `yaml:"id" json:"id" validate:"required"`
	SchemaVersion string           `yaml:"schema_version" json:"schema_version" validate:"required"`
	Symbol        string           `yaml:"symbol" json:"symbol" validate:"required"`
	Interval      Interval         `yaml:"interval" json:"interval" validate:"required"`
	RootNodeID    string           `yaml:"root_node" json:"root_node" validate:"required"`
	Nodes         []NodeDefinition `yaml:"nodes" json:"nodes" validate:"required,min=1,dive"`
}

// ParseStrategyDefinition decodes and validates a YAML strategy definition.
func ParseStrategyDefinition(data []byte) (*StrategyDefinition, error) {
	var def StrategyDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to parse strategy definition", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}

// LoadStrategyDefinition reads a strategy definition from a YAML file.
func LoadStrategyDefinition(path string) (*StrategyDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to read strategy file %s", path)
	}

	return ParseStrategyDefinition(data)
}

// Node returns the definition for the given id.
func (s *StrategyDefinition) Node(id string) (NodeDefinition, bool) {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return s.Nodes[i], true
		}
	}

	return NodeDefinition{}, false
}

// Validate performs field validation and the structural graph checks. All
// failures here are load-time fatal: no tick is processed for a malformed
// graph.
func (s *StrategyDefinition) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid strategy definition", err)
	}

	if !s.Interval.Valid() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "strategy %s: unknown interval %q", s.ID, string(s.Interval))
	}

	byID := make(map[string]NodeDefinition, len(s.Nodes))
	entryVPIs := make(map[string]bool)

	for _, node := range s.Nodes {
		if _, dup := byID[node.ID]; dup {
			return errors.Newf(errors.ErrCodeDuplicateNodeID, "strategy %s: duplicate node id %s", s.ID, node.ID)
		}

		if !knownNodeTypes[node.Type] {
			return errors.Newf(errors.ErrCodeUnknownNodeType, "strategy %s: node %s has unknown type %q", s.ID, node.ID, string(node.Type))
		}

		byID[node.ID] = node

		if node.Type == NodeTypeEntrySignal && node.Config.VPI != "" {
			entryVPIs[node.Config.VPI] = true
		}
	}

	root, ok := byID[s.RootNodeID]
	if !ok {
		return errors.Newf(errors.ErrCodeUnknownNodeReference, "strategy %s: root node %s not defined", s.ID, s.RootNodeID)
	}

	if root.Type != NodeTypeController {
		return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s: root node %s must be a controller, got %s", s.ID, s.RootNodeID, root.Type)
	}

	for _, node := range s.Nodes {
		for _, child := range node.Children {
			if _, ok := byID[child]; !ok {
				return errors.Newf(errors.ErrCodeUnknownNodeReference, "strategy %s: node %s references unknown child %s", s.ID, node.ID, child)
			}
		}

		for _, target := range node.Config.ReArmTargets {
			if _, ok := byID[target]; !ok {
				return errors.Newf(errors.ErrCodeUnknownNodeReference, "strategy %s: node %s re-arms unknown node %s", s.ID, node.ID, target)
			}
		}

		if err := validateNodeConfig(s.ID, node); err != nil {
			return err
		}

		// An exit must target a position some entry node can open; anything
		// else retries PositionNotFound for the whole run.
		if node.Type == NodeTypeExit && !entryVPIs[node.Config.TargetPositionVPI] {
			return errors.Newf(errors.ErrCodeUnknownNodeReference,
				"strategy %s: exit node %s targets unknown vpi %q", s.ID, node.ID, node.Config.TargetPositionVPI)
		}
	}

	return detectCycle(s.ID, s.RootNodeID, byID)
}

func validateNodeConfig(strategyID string, node NodeDefinition) error {
	switch node.Type {
	case NodeTypeEntrySignal:
		if node.Config.VPI == "" {
			return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s: entry node %s has no vpi", strategyID, node.ID)
		}

		if node.Config.Quantity <= 0 {
			return errors.Newf(errors.ErrCodeInvalidQuantity, "strategy %s: entry node %s has non-positive quantity", strategyID, node.ID)
		}

		if node.Config.Side != SideLong && node.Config.Side != SideShort {
			return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s: entry node %s has no side", strategyID, node.ID)
		}
	case NodeTypeExit:
		if node.Config.TargetPositionVPI == "" {
			return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s: exit node %s has no target_position_vpi", strategyID, node.ID)
		}
	case NodeTypeReEntrySignal:
		if len(node.Config.ReArmTargets) == 0 {
			return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s: re-entry node %s has no re_arm_targets", strategyID, node.ID)
		}
	case NodeTypeController, NodeTypeCondition, NodeTypeExitSignal:
		// no mandatory config
	}

	return nil
}

// detectCycle walks the children edges depth-first from the root and rejects
// any back edge. Diamonds (shared children) are allowed; the per-tick visited
// flag makes them execute once.
func detectCycle(strategyID, rootID string, byID map[string]NodeDefinition) error {
	const (
		stateInProgress = 1
		stateDone       = 2
	)

	states := make(map[string]int, len(byID))

	var walk func(id string) error

	walk = func(id string) error {
		switch states[id] {
		case stateInProgress:
			return errors.Newf(errors.ErrCodeGraphCycle, "strategy %s: cycle through node %s", strategyID, id)
		case stateDone:
			return nil
		}

		states[id] = stateInProgress

		for _, child := range byID[id].Children {
			if err := walk(child); err != nil {
				return err
			}
		}

		states[id] = stateDone

		return nil
	}

	return walk(rootID)
}
