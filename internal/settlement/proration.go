package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// TaxFromGross extracts the VAT portion embedded in a tax-inclusive amount:
// gross × rate ÷ (100 + rate), rounded to 2 decimals. The subtotal is always
// derived as gross − tax so the two parts re-add to the gross exactly.
func TaxFromGross(gross decimal.Decimal, ratePercent decimal.Decimal) decimal.Decimal {
	if !ratePercent.IsPositive() {
		return decimal.Zero
	}
	return gross.Mul(ratePercent).Div(ratePercent.Add(hundred)).Round(2)
}

// ReversalStrategy decides how a returned line's gross amount is unwound
// across the sale's remaining payment-instrument balances.
type ReversalStrategy interface {
	Debits(sale domain.Sale, amount decimal.Decimal) []domain.InstrumentDebit
}

// FixedOrderReversal walks the instruments in their canonical order (cash,
// card, check, voucher, transfer), taking from each balance until the amount
// is covered. A balance is never driven negative. If every balance is
// exhausted before the amount is covered, the remainder is absorbed rather
// than reported; the sale keeps zeroed balances either way.
type FixedOrderReversal struct{}

func (FixedOrderReversal) Debits(sale domain.Sale, amount decimal.Decimal) []domain.InstrumentDebit {
	remaining := amount
	var debits []domain.InstrumentDebit
	for _, instrument := range domain.ReversalOrder {
		if !remaining.IsPositive() {
			break
		}
		balance := sale.InstrumentBalance(instrument)
		if !balance.IsPositive() {
			continue
		}
		take := decimal.Min(balance, remaining)
		debits = append(debits, domain.InstrumentDebit{Instrument: instrument, Amount: take})
		remaining = remaining.Sub(take)
	}
	return debits
}
