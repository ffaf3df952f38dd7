package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	sales           map[string]domain.Sale
	saleItems       map[string]domain.SaleItem
	movements       []domain.StockMovement
	ledger          []domain.LedgerEntry
	cashCuts        []domain.CashCut
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        map[string]domain.Product{},
		sales:           map[string]domain.Sale{},
		saleItems:       map[string]domain.SaleItem{},
		usersByUsername: map[string]domain.UserAccount{},
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. These credentials
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewSeeded returns a store preloaded with a small branch fixture: a few
// products (one composite, one service), an open two-item sale, ledger
// history and a cash cut from the previous day.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	branch := "sucursal-centro"

	products := []domain.Product{
		{ID: "prod-cafe", BranchID: branch, Name: "Café Molido 500g", OnHand: dec("24"), UnitCost: dec("85.00"), TaxRate: dec("16"), Active: true},
		{ID: "prod-azucar", BranchID: branch, Name: "Azúcar Refinada 1kg", OnHand: dec("40"), UnitCost: dec("18.50"), TaxRate: dec("16"), Active: true},
		{ID: "prod-leche", BranchID: branch, Name: "Leche Entera 1L", OnHand: dec("36"), UnitCost: dec("14.00"), TaxRate: dec("0"), Active: true},
		{ID: "prod-canasta", BranchID: branch, Name: "Canasta Desayuno", OnHand: dec("5"), UnitCost: dec("210.00"), TaxRate: dec("16"), Active: true,
			Components: []domain.Component{
				{ProductID: "prod-cafe", QtyPerUnit: dec("2")},
				{ProductID: "prod-azucar", QtyPerUnit: dec("0.5")},
			}},
		{ID: "prod-envio", BranchID: branch, Name: "Servicio de Envío", OnHand: decimal.Zero, UnitCost: decimal.Zero, TaxRate: dec("16"), IsService: true, Active: true},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}

	sale := domain.Sale{
		ID:        "sale-0001",
		BranchID:  branch,
		Total:     dec("174"),
		Tax:       dec("24"),
		Subtotal:  dec("150"),
		ItemCount: 3,
		PaidCash:  dec("100"),
		PaidCard:  dec("74"),
		Active:    true,
		Version:   1,
		CreatedAt: now.Add(-2 * time.Hour),
	}
	s.sales[sale.ID] = sale
	s.saleItems["item-0001"] = domain.SaleItem{
		ID: "item-0001", SaleID: sale.ID, ProductID: "prod-cafe",
		Quantity: 2, LineTotal: dec("116"), Active: true,
	}
	s.saleItems["item-0002"] = domain.SaleItem{
		ID: "item-0002", SaleID: sale.ID, ProductID: "prod-azucar",
		Quantity: 1, LineTotal: dec("58"), Active: true,
	}

	s.ledger = []domain.LedgerEntry{
		{ID: uuid.NewString(), BranchID: branch, Kind: domain.EntryCashDeposit, Amount: dec("500"), Note: "Fondo de caja", Active: true, CreatedAt: now.Add(-10 * time.Hour)},
		{ID: uuid.NewString(), BranchID: branch, Kind: domain.EntryExpense, Amount: dec("350"), Note: "Pago de luz", Active: true, CreatedAt: now.Add(-6 * time.Hour)},
		{ID: uuid.NewString(), BranchID: branch, Kind: domain.EntryWithdrawal, Amount: dec("200"), Note: "Retiro parcial", Active: true, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: uuid.NewString(), BranchID: branch, Kind: domain.EntryPurchase, Amount: dec("1200"), Note: "Compra a proveedor", Active: true, CreatedAt: now.Add(-90 * time.Minute)},
	}
	s.cashCuts = []domain.CashCut{
		{ID: uuid.NewString(), BranchID: branch, CashierID: "cashier", CutAt: now.Add(-24 * time.Hour)},
	}
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) GetSaleItem(_ context.Context, itemID string) (*domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.saleItems[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := item
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := sale
	return &out, nil
}

func (s *Store) ListSaleItems(_ context.Context, saleID string) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sales[saleID]; !ok {
		return nil, store.ErrNotFound
	}
	var items []domain.SaleItem
	for _, item := range s.saleItems {
		if item.SaleID == saleID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) GetProductWithComponents(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := p
	out.Components = append([]domain.Component(nil), p.Components...)
	return &out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidRecord
	}
	product.Components = append([]domain.Component(nil), product.Components...)
	s.products[product.ID] = product
	out := product
	return &out, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if _, exists := s.sales[sale.ID]; exists {
		return nil, store.ErrInvalidRecord
	}
	if sale.Version == 0 {
		sale.Version = 1
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].SaleID = sale.ID
	}
	s.sales[sale.ID] = sale
	for _, item := range items {
		s.saleItems[item.ID] = item
	}
	out := sale
	return &out, nil
}

// ApplySettlement mirrors the transactional contract of the Postgres store:
// either every write in the plan lands or none of them do, and a plan built
// against a stale sale version is rejected with ErrVersionConflict.
func (s *Store) ApplySettlement(_ context.Context, plan domain.Settlement) ([]domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.saleItems[plan.ItemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if item.Returned() {
		return nil, store.ErrAlreadyReturned
	}
	sale, ok := s.sales[plan.SaleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Version != plan.SaleVersion {
		return nil, store.ErrVersionConflict
	}

	// Validate every restock target before mutating anything, so a missing
	// product cannot leave a half-applied plan behind.
	for _, r := range plan.Restocks {
		if _, ok := s.products[r.ProductID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	var inserted []domain.StockMovement
	for _, r := range plan.Restocks {
		p := s.products[r.ProductID]
		before := p.OnHand
		p.OnHand = p.OnHand.Add(r.Qty)
		s.products[r.ProductID] = p
		inserted = append(inserted, domain.StockMovement{
			ID:        uuid.NewString(),
			ProductID: r.ProductID,
			BranchID:  plan.BranchID,
			Kind:      domain.MovementSaleReturn,
			Qty:       r.Qty,
			QtyBefore: before,
			UnitCost:  p.UnitCost,
			ActorID:   plan.ActorID,
			CreatedAt: plan.ReturnedAt,
		})
	}
	s.movements = append(s.movements, inserted...)

	returnedAt := plan.ReturnedAt
	item.Active = false
	item.ReturnedAt = &returnedAt
	item.ReturnedBy = plan.ActorID
	s.saleItems[plan.ItemID] = item

	sale.Total = sale.Total.Sub(plan.SaleDelta.Total)
	sale.Tax = sale.Tax.Sub(plan.SaleDelta.Tax)
	sale.Subtotal = sale.Subtotal.Sub(plan.SaleDelta.Subtotal)
	sale.ItemCount -= plan.SaleDelta.ItemCount
	for _, d := range plan.Debits {
		applyDebit(&sale, d.Instrument, d.Amount)
	}
	sale.Version++
	s.sales[plan.SaleID] = sale

	out := append([]domain.StockMovement(nil), inserted...)
	return out, nil
}

func applyDebit(sale *domain.Sale, instrument string, amount decimal.Decimal) {
	switch instrument {
	case domain.InstrumentCash:
		sale.PaidCash = sale.PaidCash.Sub(amount)
	case domain.InstrumentCard:
		sale.PaidCard = sale.PaidCard.Sub(amount)
	case domain.InstrumentCheck:
		sale.PaidCheck = sale.PaidCheck.Sub(amount)
	case domain.InstrumentVoucher:
		sale.PaidVoucher = sale.PaidVoucher.Sub(amount)
	case domain.InstrumentTransfer:
		sale.PaidTransfer = sale.PaidTransfer.Sub(amount)
	}
}

func (s *Store) CountActiveSaleItems(_ context.Context, saleID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sales[saleID]; !ok {
		return 0, store.ErrNotFound
	}
	count := 0
	for _, item := range s.saleItems {
		if item.SaleID == saleID && item.Active {
			count++
		}
	}
	return count, nil
}

func (s *Store) SetSaleActive(_ context.Context, saleID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[saleID]
	if !ok {
		return store.ErrNotFound
	}
	if sale.Active == active {
		return nil
	}
	sale.Active = active
	s.sales[saleID] = sale
	return nil
}

func (s *Store) RecordMovement(_ context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[movement.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if movement.ID == "" {
		movement.ID = uuid.NewString()
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	movement.QtyBefore = p.OnHand
	movement.UnitCost = p.UnitCost
	p.OnHand = p.OnHand.Add(movement.Qty)
	s.products[movement.ProductID] = p
	s.movements = append(s.movements, movement)
	out := movement
	return &out, nil
}

func (s *Store) ListMovementsByProduct(_ context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StockMovement
	for i := len(s.movements) - 1; i >= 0; i-- {
		if s.movements[i].ProductID != productID {
			continue
		}
		out = append(out, s.movements[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateLedgerEntry(_ context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.ledger = append(s.ledger, entry)
	out := entry
	return &out, nil
}

func (s *Store) ListLedgerEntriesSince(_ context.Context, branchID string, since time.Time) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range s.ledger {
		if e.BranchID == branchID && e.Active && e.CreatedAt.After(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListCashSalesSince(_ context.Context, branchID string, since time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Sale
	for _, sale := range s.sales {
		if sale.BranchID == branchID && sale.Active && sale.PaidCash.IsPositive() && sale.CreatedAt.After(since) {
			out = append(out, sale)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListReturnedItemsSince(_ context.Context, branchID string, since time.Time) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SaleItem
	for _, item := range s.saleItems {
		if item.ReturnedAt == nil || !item.ReturnedAt.After(since) {
			continue
		}
		sale, ok := s.sales[item.SaleID]
		if !ok || sale.BranchID != branchID {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReturnedAt.Before(*out[j].ReturnedAt) })
	return out, nil
}

func (s *Store) GetLastCashCut(_ context.Context, branchID string, cashierID string) (*domain.CashCut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *domain.CashCut
	for i := range s.cashCuts {
		c := s.cashCuts[i]
		if c.BranchID != branchID || c.CashierID != cashierID {
			continue
		}
		if last == nil || c.CutAt.After(last.CutAt) {
			cc := c
			last = &cc
		}
	}
	if last == nil {
		return nil, store.ErrNotFound
	}
	return last, nil
}

func (s *Store) CreateCashCut(_ context.Context, cut domain.CashCut) (*domain.CashCut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cut.BranchID == "" || cut.CashierID == "" {
		return nil, store.ErrInvalidRecord
	}
	if cut.ID == "" {
		cut.ID = uuid.NewString()
	}
	if cut.CutAt.IsZero() {
		cut.CutAt = time.Now().UTC()
	}
	s.cashCuts = append(s.cashCuts, cut)
	out := cut
	return &out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidRecord
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.usersByUsername[username] = u
	return nil
}

var _ store.Repository = (*Store)(nil)
