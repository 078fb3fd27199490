package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// Side is the direction of a transaction.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ExitReason records why a transaction was closed.
type ExitReason string

const (
	ExitReasonSignal     ExitReason = "signal"
	ExitReasonTimeBased  ExitReason = "time_based"
	ExitReasonPnlBased   ExitReason = "pnl_based"
	ExitReasonSessionEnd ExitReason = "session_end"
)

// ExitFill describes the closing leg of a transaction.
type ExitFill struct {
	Time   time.Time  `yaml:"time" json:"time" csv:"time"`
	Price  float64    `yaml:"price" json:"price" csv:"price"`
	Reason ExitReason `yaml:"reason" json:"reason" csv:"reason"`
}

// Transaction is one fill under a logical position: the initial entry or a
// re-entry. ReEntryIndex is 0 for the initial entry.
type Transaction struct {
	ID           string    `yaml:"id" json:"id" csv:"id"`
	PositionID   string    `yaml:"position_id" json:"position_id" csv:"position_id"`
	NodeID       string    `yaml:"node_id" json:"node_id" csv:"node_id"`
	Symbol       string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side         Side      `yaml:"side" json:"side" csv:"side"`
	Quantity     float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	EntryTime  time.Time `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	// Strike is the traded contract strike resolved from the reference price
	// and the strike grid. It equals EntryPrice when no grid is configured.
	Strike       float64 `yaml:"strike" json:"strike" csv:"strike"`
	ReEntryIndex int     `yaml:"re_entry_index" json:"re_entry_index" csv:"re_entry_index"`
	// Exit is set exactly once, when the transaction is closed.
	Exit optional.Option[ExitFill] `yaml:"exit" json:"exit" csv:"exit"`
}

// IsOpen reports whether the transaction has not been closed yet.
func (t *Transaction) IsOpen() bool {
	return t.Exit.IsNone()
}

// PnL returns the realized profit and loss of the transaction. It is defined
// only once the exit is set; an open transaction returns 0.
func (t *Transaction) PnL() float64 {
	if t.Exit.IsNone() {
		return 0
	}

	exit := t.Exit.Unwrap()
	entryDec := decimal.NewFromFloat(t.EntryPrice)
	exitDec := decimal.NewFromFloat(exit.Price)
	qtyDec := decimal.NewFromFloat(t.Quantity)

	pnlDec := exitDec.Sub(entryDec).Mul(qtyDec)
	if t.Side == SideShort {
		pnlDec = pnlDec.Neg()
	}

	pnl, _ := pnlDec.Float64()

	return pnl
}

// Position is a logical trading slot identified by a virtual position id. It
// holds the ordered list of transactions opened under that id: the initial
// entry followed by re-entries.
type Position struct {
	VPI          string        `yaml:"vpi" json:"vpi" csv:"vpi"`
	Transactions []Transaction `yaml:"transactions" json:"transactions" csv:"transactions"`
}

// OpenTransaction returns a pointer to the most recent transaction if it is
// still open. At most one transaction per position is open at a time.
func (p *Position) OpenTransaction() *Transaction {
	if len(p.Transactions) == 0 {
		return nil
	}

	last := &p.Transactions[len(p.Transactions)-1]
	if last.IsOpen() {
		return last
	}

	return nil
}

// LatestTransaction returns the most recent transaction, open or closed.
func (p *Position) LatestTransaction() (Transaction, bool) {
	if len(p.Transactions) == 0 {
		return Transaction{}, false
	}

	return p.Transactions[len(p.Transactions)-1], true
}

// HasOpenTransaction reports whether the position currently holds an open fill.
func (p *Position) HasOpenTransaction() bool {
	return p.OpenTransaction() != nil
}

// RealizedPnL sums the P&L of all closed transactions using decimal arithmetic.
func (p *Position) RealizedPnL() float64 {
	total := decimal.Zero
	for i := range p.Transactions {
		total = total.Add(decimal.NewFromFloat(p.Transactions[i].PnL()))
	}

	result, _ := total.Float64()

	return result
}
