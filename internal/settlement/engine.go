package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/store"
)

// Failure kinds the engine reports at its public boundary.
const (
	KindNotFound            = "not_found"
	KindAlreadyReturned     = "already_returned"
	KindConcurrencyConflict = "concurrency_conflict"
	KindPersistenceFailure  = "persistence_failure"
)

// Failure is the engine's only error type. Callers branch on Kind; raw
// storage errors never cross this boundary.
type Failure struct {
	Kind    string
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func failure(kind string, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsFailure unwraps err into a *Failure when the engine produced it.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

const defaultMaxAttempts = 3

// Engine settles line-item returns: tax split, payment reversal, restock,
// audit rows, item deactivation and derived sale deactivation, all against
// one Repository.
type Engine struct {
	repo        store.Repository
	reversal    ReversalStrategy
	maxAttempts int
	now         func() time.Time
}

func NewEngine(repo store.Repository, reversal ReversalStrategy, maxAttempts int) *Engine {
	if reversal == nil {
		reversal = FixedOrderReversal{}
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Engine{
		repo:        repo,
		reversal:    reversal,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SettleReturn settles one line-item return on behalf of actorID. The write
// set is computed from freshly loaded state and applied atomically; when a
// concurrent settlement bumps the sale version first, the engine reloads and
// recomputes, bounded by maxAttempts, so a stale plan is never applied.
func (e *Engine) SettleReturn(ctx context.Context, itemID string, actorID string) (*domain.SettleAck, error) {
	if itemID == "" {
		return nil, failure(KindNotFound, "sale item id is required")
	}

	for attempt := 1; ; attempt++ {
		item, err := e.repo.GetSaleItem(ctx, itemID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, failure(KindNotFound, "sale item %s not found", itemID)
		}
		if err != nil {
			return nil, e.persistence("load sale item", err)
		}
		if item.Returned() {
			return nil, failure(KindAlreadyReturned, "sale item %s was already returned", itemID)
		}

		product, err := e.repo.GetProductWithComponents(ctx, item.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, failure(KindNotFound, "product %s not found", item.ProductID)
		}
		if err != nil {
			return nil, e.persistence("load product", err)
		}

		sale, err := e.repo.GetSale(ctx, item.SaleID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, failure(KindNotFound, "sale %s not found", item.SaleID)
		}
		if err != nil {
			return nil, e.persistence("load sale", err)
		}

		plan, tax := e.buildPlan(item, sale, product, actorID)

		_, err = e.repo.ApplySettlement(ctx, plan)
		switch {
		case err == nil:
			saleActive := e.reconcileAfterCommit(ctx, plan.SaleID)
			return &domain.SettleAck{
				ItemID:       item.ID,
				SaleID:       sale.ID,
				LineTotal:    item.LineTotal,
				LineTax:      tax,
				LineSubtotal: item.LineTotal.Sub(tax),
				SaleActive:   saleActive,
				ReturnedAt:   plan.ReturnedAt.Format(time.RFC3339),
			}, nil
		case errors.Is(err, store.ErrAlreadyReturned):
			return nil, failure(KindAlreadyReturned, "sale item %s was already returned", itemID)
		case errors.Is(err, store.ErrVersionConflict):
			if attempt < e.maxAttempts {
				log.Printf("[engine] WARN: sale %s version conflict on attempt %d, recomputing", sale.ID, attempt)
				continue
			}
			return nil, failure(KindConcurrencyConflict, "sale %s kept changing after %d attempts", sale.ID, e.maxAttempts)
		case errors.Is(err, store.ErrNotFound):
			return nil, failure(KindNotFound, "settlement target disappeared for item %s", itemID)
		default:
			return nil, e.persistence("apply settlement", err)
		}
	}
}

// buildPlan derives the full write set from loaded state. It is pure: no
// clock reads besides the single returnedAt stamp, no storage access.
func (e *Engine) buildPlan(item *domain.SaleItem, sale *domain.Sale, product *domain.Product, actorID string) (domain.Settlement, decimal.Decimal) {
	tax := TaxFromGross(item.LineTotal, product.TaxRate)
	subtotal := item.LineTotal.Sub(tax)

	plan := domain.Settlement{
		ItemID:      item.ID,
		SaleID:      sale.ID,
		BranchID:    sale.BranchID,
		SaleVersion: sale.Version,
		ActorID:     actorID,
		ReturnedAt:  e.now(),
		SaleDelta: domain.SaleDelta{
			Total:     item.LineTotal,
			Tax:       tax,
			Subtotal:  subtotal,
			ItemCount: item.Quantity,
		},
		Debits:   e.reversal.Debits(*sale, item.LineTotal),
		Restocks: restockLines(item, product),
	}
	return plan, tax
}

// restockLines expands the inventory effect of returning the item. Composite
// products restock their components only, one level deep; the composite
// itself never re-enters stock. Services have no inventory effect.
func restockLines(item *domain.SaleItem, product *domain.Product) []domain.RestockLine {
	if product.IsService {
		return nil
	}
	qty := decimal.NewFromInt(int64(item.Quantity))
	if len(product.Components) == 0 {
		return []domain.RestockLine{{ProductID: product.ID, Qty: qty}}
	}
	lines := make([]domain.RestockLine, 0, len(product.Components))
	for _, c := range product.Components {
		lines = append(lines, domain.RestockLine{ProductID: c.ProductID, Qty: qty.Mul(c.QtyPerUnit)})
	}
	return lines
}

// reconcileAfterCommit re-derives the sale's active flag once the settlement
// has committed. The settlement itself stands even when this step fails; the
// flag is derived state and the next reconcile repairs it.
func (e *Engine) reconcileAfterCommit(ctx context.Context, saleID string) bool {
	active, err := e.ReconcileSaleActive(ctx, saleID)
	if err != nil {
		log.Printf("[engine] WARN: settlement committed but sale %s active flag not reconciled: %v", saleID, err)
		return active
	}
	return active
}

// ReconcileSaleActive recomputes the sale's active flag from its items:
// active while at least one item is active. Set-if-different, idempotent,
// safe to call at any time.
func (e *Engine) ReconcileSaleActive(ctx context.Context, saleID string) (bool, error) {
	count, err := e.repo.CountActiveSaleItems(ctx, saleID)
	if err != nil {
		return true, err
	}
	active := count > 0
	if err := e.repo.SetSaleActive(ctx, saleID, active); err != nil {
		return active, err
	}
	return active, nil
}

func (e *Engine) persistence(op string, err error) *Failure {
	log.Printf("[engine] WARN: %s failed: %v", op, err)
	return failure(KindPersistenceFailure, "%s failed", op)
}
