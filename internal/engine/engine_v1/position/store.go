// Package position keeps the run's trading state: logical positions keyed by
// virtual position id, each holding the ordered transactions (entry plus
// re-entries) opened under it.
package position

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/tradelayout/tickgraph/internal/logger"
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// OpenRequest carries everything needed to open a transaction under a
// logical position.
type OpenRequest struct {
	VPI          string
	NodeID       string
	Symbol       string
	Side         types.Side
	Quantity float64
	Price    float64
	// Strike is the resolved traded strike; zero falls back to Price.
	Strike       float64
	Time         time.Time
	ReEntryIndex int
}

// Store tracks logical positions for one run. It is not safe for concurrent
// use; the engine drives it from a single goroutine.
type Store struct {
	positions map[string]*types.Position
	logger    *logger.Logger
}

func NewStore(l *logger.Logger) *Store {
	if l == nil {
		l = logger.NewNopLogger()
	}

	return &Store{
		positions: make(map[string]*types.Position),
		logger:    l,
	}
}

// Open records a new transaction under req.VPI, creating the logical
// position on first use. A position with an open transaction rejects the
// request; close it before opening the next fill.
func (s *Store) Open(req OpenRequest) (types.Transaction, error) {
	if req.VPI == "" {
		return types.Transaction{}, errors.New(errors.ErrCodeMissingParameter, "Open: virtual position id is required")
	}

	if req.Quantity <= 0 {
		return types.Transaction{}, errors.Newf(errors.ErrCodeInvalidQuantity, "Open: quantity must be positive, got %v", req.Quantity)
	}

	if req.Price <= 0 {
		return types.Transaction{}, errors.Newf(errors.ErrCodeInvalidPrice, "Open: price must be positive, got %v", req.Price)
	}

	if req.Side != types.SideLong && req.Side != types.SideShort {
		return types.Transaction{}, errors.Newf(errors.ErrCodeInvalidParameter, "Open: unknown side %q", string(req.Side))
	}

	pos, ok := s.positions[req.VPI]
	if !ok {
		pos = &types.Position{VPI: req.VPI}
		s.positions[req.VPI] = pos
	}

	if pos.HasOpenTransaction() {
		return types.Transaction{}, errors.Newf(errors.ErrCodePositionStillOpen,
			"Open: position %s already has an open transaction", req.VPI)
	}

	strike := req.Strike
	if strike == 0 {
		strike = req.Price
	}

	txn := types.Transaction{
		ID:           uuid.NewString(),
		PositionID:   req.VPI,
		NodeID:       req.NodeID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Quantity:     req.Quantity,
		EntryTime:    req.Time,
		EntryPrice:   req.Price,
		Strike:       strike,
		ReEntryIndex: req.ReEntryIndex,
	}
	pos.Transactions = append(pos.Transactions, txn)

	s.logger.Debug("opened transaction",
		zap.String("vpi", req.VPI),
		zap.String("transaction_id", txn.ID),
		zap.String("side", string(req.Side)),
		zap.Float64("price", req.Price),
		zap.Int("re_entry_index", req.ReEntryIndex),
	)

	return txn, nil
}

// Close fills the exit leg of the open transaction under vpi.
func (s *Store) Close(vpi string, price float64, at time.Time, reason types.ExitReason) (types.Transaction, error) {
	pos, ok := s.positions[vpi]
	if !ok {
		return types.Transaction{}, errors.Newf(errors.ErrCodePositionNotFound, "Close: position %s not found", vpi)
	}

	open := pos.OpenTransaction()
	if open == nil {
		return types.Transaction{}, errors.Newf(errors.ErrCodePositionAlreadyClosed,
			"Close: position %s has no open transaction", vpi)
	}

	if price <= 0 {
		return types.Transaction{}, errors.Newf(errors.ErrCodeInvalidPrice, "Close: price must be positive, got %v", price)
	}

	open.Exit = optional.Some(types.ExitFill{
		Time:   at,
		Price:  price,
		Reason: reason,
	})

	s.logger.Debug("closed transaction",
		zap.String("vpi", vpi),
		zap.String("transaction_id", open.ID),
		zap.Float64("price", price),
		zap.String("reason", string(reason)),
		zap.Float64("pnl", open.PnL()),
	)

	return *open, nil
}

// Get returns a copy of the logical position under vpi.
func (s *Store) Get(vpi string) (types.Position, error) {
	pos, ok := s.positions[vpi]
	if !ok {
		return types.Position{}, errors.Newf(errors.ErrCodePositionNotFound, "Get: position %s not found", vpi)
	}

	return clonePosition(pos), nil
}

// ListOpen returns every position currently holding an open transaction,
// ordered by virtual position id.
func (s *Store) ListOpen() []types.Position {
	return s.list(func(p *types.Position) bool { return p.HasOpenTransaction() })
}

// ListClosed returns every position whose transactions are all closed,
// ordered by virtual position id.
func (s *Store) ListClosed() []types.Position {
	return s.list(func(p *types.Position) bool { return !p.HasOpenTransaction() })
}

// Transactions returns every transaction across all positions in entry-time
// order, for results export.
func (s *Store) Transactions() []types.Transaction {
	var out []types.Transaction
	for _, pos := range s.positions {
		out = append(out, pos.Transactions...)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].EntryTime.Before(out[j].EntryTime)
		}

		return out[i].ID < out[j].ID
	})

	return out
}

// RealizedPnL sums realized profit and loss across all positions.
func (s *Store) RealizedPnL() float64 {
	total := 0.0
	for _, pos := range s.positions {
		total += pos.RealizedPnL()
	}

	return total
}

// Reset drops all position state.
func (s *Store) Reset() {
	s.positions = make(map[string]*types.Position)
}

func (s *Store) list(keep func(*types.Position) bool) []types.Position {
	var out []types.Position

	for _, pos := range s.positions {
		if keep(pos) {
			out = append(out, clonePosition(pos))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].VPI < out[j].VPI })

	return out
}

func clonePosition(p *types.Position) types.Position {
	out := types.Position{VPI: p.VPI}
	out.Transactions = append(out.Transactions, p.Transactions...)

	return out
}
