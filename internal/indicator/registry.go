package indicator

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tradelayout/tickgraph/pkg/errors"
)

// Factory builds a fresh indicator instance for the given period.
type Factory func(period int) Indicator

// Registry manages the available indicator formulas. Names are parsed as
// "formula(period)", e.g. "ema(21)" or "rsi(14)".
type Registry interface {
	Register(formula string, factory Factory) error
	New(name IndicatorName) (Indicator, error)
	List() []string
	Remove(formula string) error
}

// RegistryV1 manages all available indicator factories.
type RegistryV1 struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a new indicator registry.
func NewRegistry() Registry {
	return &RegistryV1{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry with the built-in formulas registered.
func DefaultRegistry() Registry {
	r := NewRegistry()
	_ = r.Register("ema", NewEMA)
	_ = r.Register("sma", NewSMA)
	_ = r.Register("rsi", NewRSI)
	_ = r.Register("atr", NewATR)

	return r
}

// Register adds an indicator factory to the registry.
func (r *RegistryV1) Register(formula string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[formula]; exists {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "Register: indicator %s already registered", formula)
	}

	r.factories[formula] = factory

	return nil
}

// New builds an instance from a name like "ema(21)".
func (r *RegistryV1) New(name IndicatorName) (Indicator, error) {
	formula, period, err := ParseName(name)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	factory, exists := r.factories[formula]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "New: indicator %s not found", formula)
	}

	return factory(period), nil
}

// List returns the registered formula names.
func (r *RegistryV1) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	return names
}

// Remove removes an indicator factory from the registry.
func (r *RegistryV1) Remove(formula string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[formula]; !exists {
		return errors.Newf(errors.ErrCodeIndicatorNotFound, "Remove: indicator %s not found", formula)
	}

	delete(r.factories, formula)

	return nil
}

// ParseName splits "ema(21)" into formula and period.
func ParseName(name IndicatorName) (string, int, error) {
	s := strings.TrimSpace(string(name))

	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid indicator name %q, expected formula(period)", s)
	}

	formula := s[:open]

	period, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil || period <= 0 {
		return "", 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid indicator period in %q", s)
	}

	return formula, period, nil
}

// FormatName builds the canonical "formula(period)" name.
func FormatName(formula string, period int) IndicatorName {
	return IndicatorName(fmt.Sprintf("%s(%d)", formula, period))
}
