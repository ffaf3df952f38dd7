package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is the header record of a completed sale: gross totals plus the amount
// paid through each payment instrument. Instrument balances are reduced as
// line items are returned, so their sum equals Total only while the sale is
// fully active. Version guards concurrent settlement of sibling line items.
type Sale struct {
	ID           string          `json:"id"`
	BranchID     string          `json:"branch_id"`
	Total        decimal.Decimal `json:"total"`
	Tax          decimal.Decimal `json:"tax"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ItemCount    int             `json:"item_count"`
	PaidCash     decimal.Decimal `json:"paid_cash"`
	PaidCard     decimal.Decimal `json:"paid_card"`
	PaidCheck    decimal.Decimal `json:"paid_check"`
	PaidVoucher  decimal.Decimal `json:"paid_voucher"`
	PaidTransfer decimal.Decimal `json:"paid_transfer"`
	Active       bool            `json:"active"`
	Version      int             `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SaleItem is one sold line within a Sale. LineTotal is the tax-inclusive
// gross for the whole line. ReturnedAt/ReturnedBy are written exactly once.
type SaleItem struct {
	ID         string          `json:"id"`
	SaleID     string          `json:"sale_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Active     bool            `json:"active"`
	ReturnedAt *time.Time      `json:"returned_at,omitempty"`
	ReturnedBy string          `json:"returned_by,omitempty"`
}

// Returned reports whether the item already went through settlement.
func (i SaleItem) Returned() bool {
	return i.ReturnedAt != nil
}

// Component links a composite product to one of its component products.
// QtyPerUnit is how many component units one composite unit contains;
// fractional values are allowed (e.g. 0.5 kg per unit).
type Component struct {
	ProductID  string          `json:"product_id"`
	QtyPerUnit decimal.Decimal `json:"qty_per_unit"`
}

// Product carries the restock-relevant surface: current on-hand quantity,
// unit cost, tax rate (percent, 16 means 16%), the service flag, and an
// ordered one-level component list for composites. Services hold no stock.
type Product struct {
	ID         string          `json:"id"`
	BranchID   string          `json:"branch_id"`
	Name       string          `json:"name"`
	OnHand     decimal.Decimal `json:"on_hand"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
	IsService  bool            `json:"is_service"`
	Active     bool            `json:"active"`
	Components []Component     `json:"components,omitempty"`
}

// StockMovement is an immutable audit row for one stock mutation. Qty is the
// signed delta (positive on restock); QtyBefore is the on-hand quantity at
// the instant the movement was applied, and UnitCost snapshots the product's
// cost at that moment. Rows are only ever inserted.
type StockMovement struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	BranchID  string          `json:"branch_id"`
	Kind      string          `json:"kind"`
	Qty       decimal.Decimal `json:"qty"`
	QtyBefore decimal.Decimal `json:"qty_before"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	ActorID   string          `json:"actor_id"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	MovementSale             = "sale"
	MovementSaleReturn       = "sale_return"
	MovementPurchase         = "purchase"
	MovementManualAdjustment = "manual_adjustment"
)

// Payment instruments in their canonical reversal order.
const (
	InstrumentCash     = "cash"
	InstrumentCard     = "card"
	InstrumentCheck    = "check"
	InstrumentVoucher  = "voucher"
	InstrumentTransfer = "transfer"
)

// ReversalOrder is the fixed instrument sequence used when unwinding a
// returned line's payment across the sale's remaining balances.
var ReversalOrder = []string{
	InstrumentCash,
	InstrumentCard,
	InstrumentCheck,
	InstrumentVoucher,
	InstrumentTransfer,
}

// InstrumentBalance returns the sale's remaining paid amount for one
// instrument. Unknown instruments read as zero.
func (s Sale) InstrumentBalance(instrument string) decimal.Decimal {
	switch instrument {
	case InstrumentCash:
		return s.PaidCash
	case InstrumentCard:
		return s.PaidCard
	case InstrumentCheck:
		return s.PaidCheck
	case InstrumentVoucher:
		return s.PaidVoucher
	case InstrumentTransfer:
		return s.PaidTransfer
	default:
		return decimal.Zero
	}
}

// InstrumentDebit is one scheduled decrement against a payment instrument.
type InstrumentDebit struct {
	Instrument string          `json:"instrument"`
	Amount     decimal.Decimal `json:"amount"`
}

// RestockLine is one scheduled on-hand increment. Quantity-before and the
// cost snapshot are captured by the store at apply time, inside the
// transaction, never precomputed.
type RestockLine struct {
	ProductID string
	Qty       decimal.Decimal
}

// SaleDelta holds the decrements applied to the sale header.
type SaleDelta struct {
	Total     decimal.Decimal
	Tax       decimal.Decimal
	Subtotal  decimal.Decimal
	ItemCount int
}

// Settlement is the fully computed write set for one line-item return. It is
// a pure function of the state it was derived from; SaleVersion pins that
// state so a stale plan is rejected instead of replayed.
type Settlement struct {
	ItemID      string
	SaleID      string
	BranchID    string
	SaleVersion int
	ActorID     string
	ReturnedAt  time.Time
	SaleDelta   SaleDelta
	Debits      []InstrumentDebit
	Restocks    []RestockLine
}

// SettleAck is the engine's success acknowledgement.
type SettleAck struct {
	ItemID       string          `json:"sale_item_id"`
	SaleID       string          `json:"sale_id"`
	LineTotal    decimal.Decimal `json:"line_total"`
	LineTax      decimal.Decimal `json:"line_tax"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	SaleActive   bool            `json:"sale_active"`
	ReturnedAt   string          `json:"returned_at"`
}

type SettleReturnRequest struct {
	SaleItemID string `json:"sale_item_id"`
}

// CashCut marks the instant a cashier last closed out a register; the
// aggregation reporter sums everything after it.
type CashCut struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	CashierID string    `json:"cashier_id"`
	CutAt     time.Time `json:"cut_at"`
}

// LedgerEntry is one normalized cash-ledger record. Expenses, withdrawals,
// cash-fund deposits, investments, purchases and both return flavors share
// this shape; sales and per-line-item returns are derived from their own
// tables at read time.
type LedgerEntry struct {
	ID        string          `json:"id"`
	BranchID  string          `json:"branch_id"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	EntryExpense        = "expense"
	EntryWithdrawal     = "withdrawal"
	EntryCashDeposit    = "cash_deposit"
	EntryInvestment     = "investment"
	EntryPurchase       = "purchase"
	EntryPurchaseReturn = "purchase_return"
	EntrySaleReturn     = "sale_return"
	EntrySale           = "sale"
	EntryItemReturn     = "item_return"
)

// CashCutRow is one normalized line in a cash-cut summary.
type CashCutRow struct {
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
	At     time.Time       `json:"at"`
}

type CashCutKindTotal struct {
	Kind  string          `json:"kind"`
	Total decimal.Decimal `json:"total"`
}

type CashCutSummary struct {
	BranchID  string             `json:"branch_id"`
	CashierID string             `json:"cashier_id"`
	Since     time.Time          `json:"since"`
	Totals    []CashCutKindTotal `json:"totals_by_kind"`
	Rows      []CashCutRow       `json:"rows"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is the persistence shape for auth credentials. Password holds
// a bcrypt hash, never plaintext.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
