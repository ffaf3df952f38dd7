package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/store"
)

func TestApplySettlementRestocksAndGuardsVersion(t *testing.T) {
	databaseURL := os.Getenv("RETORNOPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RETORNOPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	branchID := fmt.Sprintf("branch-it-%d", stamp)
	productID := fmt.Sprintf("prod-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	itemA := fmt.Sprintf("item-it-a-%d", stamp)
	itemB := fmt.Sprintf("item-it-b-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE branch_id = $1`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	dec := func(v string) decimal.Decimal { return decimal.RequireFromString(v) }

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID: productID, BranchID: branchID, Name: "Producto Integración",
		OnHand: dec("10"), UnitCost: dec("85"), TaxRate: dec("16"), Active: true,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := s.CreateSale(ctx, domain.Sale{
		ID: saleID, BranchID: branchID,
		Total: dec("174"), Tax: dec("24"), Subtotal: dec("150"), ItemCount: 3,
		PaidCash: dec("100"), PaidCard: dec("74"), Active: true,
	}, []domain.SaleItem{
		{ID: itemA, ProductID: productID, Quantity: 2, LineTotal: dec("116"), Active: true},
		{ID: itemB, ProductID: productID, Quantity: 1, LineTotal: dec("58"), Active: true},
	}); err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	plan := domain.Settlement{
		ItemID: itemA, SaleID: saleID, BranchID: branchID, SaleVersion: 1,
		ActorID: "it-user", ReturnedAt: at,
		SaleDelta: domain.SaleDelta{Total: dec("116"), Tax: dec("16"), Subtotal: dec("100"), ItemCount: 2},
		Debits: []domain.InstrumentDebit{
			{Instrument: domain.InstrumentCash, Amount: dec("100")},
			{Instrument: domain.InstrumentCard, Amount: dec("16")},
		},
		Restocks: []domain.RestockLine{{ProductID: productID, Qty: dec("2")}},
	}

	movements, err := s.ApplySettlement(ctx, plan)
	if err != nil {
		t.Fatalf("apply settlement: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("got %d movements, want 1", len(movements))
	}
	if !movements[0].QtyBefore.Equal(dec("10")) || !movements[0].UnitCost.Equal(dec("85")) {
		t.Fatalf("movement snapshots = before %s cost %s, want 10 / 85", movements[0].QtyBefore, movements[0].UnitCost)
	}

	product, err := s.GetProductWithComponents(ctx, productID)
	if err != nil {
		t.Fatalf("load product: %v", err)
	}
	if !product.OnHand.Equal(dec("12")) {
		t.Fatalf("on hand = %s, want 12", product.OnHand)
	}

	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		t.Fatalf("load sale: %v", err)
	}
	if sale.Version != 2 {
		t.Fatalf("sale version = %d, want 2", sale.Version)
	}
	if sale.ItemCount != 1 {
		t.Fatalf("item count = %d after returning a quantity-2 line, want 1", sale.ItemCount)
	}
	if !sale.PaidCash.IsZero() || !sale.PaidCard.Equal(dec("58")) {
		t.Fatalf("instrument balances = cash %s card %s, want 0 / 58", sale.PaidCash, sale.PaidCard)
	}

	item, err := s.GetSaleItem(ctx, itemA)
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.Active || !item.Returned() || item.ReturnedBy != "it-user" {
		t.Fatalf("item not marked returned: %+v", item)
	}

	// replay of the same plan must be rejected on the idempotence guard
	if _, err := s.ApplySettlement(ctx, plan); !errors.Is(err, store.ErrAlreadyReturned) {
		t.Fatalf("replay = %v, want ErrAlreadyReturned", err)
	}
	if p, _ := s.GetProductWithComponents(ctx, productID); !p.OnHand.Equal(dec("12")) {
		t.Fatalf("on hand drifted to %s after replay, want 12", p.OnHand)
	}

	// a plan computed against the old version must not apply
	stale := domain.Settlement{
		ItemID: itemB, SaleID: saleID, BranchID: branchID, SaleVersion: 1,
		ActorID: "it-user", ReturnedAt: at,
		SaleDelta: domain.SaleDelta{Total: dec("58"), Tax: dec("8"), Subtotal: dec("50"), ItemCount: 1},
		Debits:    []domain.InstrumentDebit{{Instrument: domain.InstrumentCard, Amount: dec("58")}},
		Restocks:  []domain.RestockLine{{ProductID: productID, Qty: dec("1")}},
	}
	if _, err := s.ApplySettlement(ctx, stale); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("stale plan = %v, want ErrVersionConflict", err)
	}
	if p, _ := s.GetProductWithComponents(ctx, productID); !p.OnHand.Equal(dec("12")) {
		t.Fatalf("stale plan mutated stock to %s, want 12", p.OnHand)
	}
	if itm, _ := s.GetSaleItem(ctx, itemB); itm.Returned() {
		t.Fatalf("stale plan marked sibling item returned")
	}

	// recomputed against the current version it goes through
	stale.SaleVersion = 2
	if _, err := s.ApplySettlement(ctx, stale); err != nil {
		t.Fatalf("recomputed plan: %v", err)
	}

	if final, _ := s.GetSale(ctx, saleID); final.ItemCount != 0 {
		t.Fatalf("item count = %d after both lines returned, want 0", final.ItemCount)
	}
	if count, err := s.CountActiveSaleItems(ctx, saleID); err != nil || count != 0 {
		t.Fatalf("active items = %d (%v), want 0", count, err)
	}
	if err := s.SetSaleActive(ctx, saleID, false); err != nil {
		t.Fatalf("set sale inactive: %v", err)
	}
	if err := s.SetSaleActive(ctx, saleID, false); err != nil {
		t.Fatalf("repeat set sale inactive: %v", err)
	}
}
