package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetSaleItem(ctx context.Context, itemID string) (*domain.SaleItem, error) {
	var item domain.SaleItem
	var returnedAt sql.NullTime
	var returnedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sale_id, product_id, quantity, line_total, active, returned_at, returned_by
		FROM sale_items
		WHERE id = $1
	`, itemID).Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.LineTotal, &item.Active, &returnedAt, &returnedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if returnedAt.Valid {
		at := returnedAt.Time.UTC()
		item.ReturnedAt = &at
	}
	item.ReturnedBy = returnedBy.String
	return &item, nil
}

func (s *Store) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, saleSelect+` WHERE id = $1`, saleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sale, nil
}

const saleSelect = `
	SELECT id, branch_id, total, tax, subtotal, item_count,
	       paid_cash, paid_card, paid_check, paid_voucher, paid_transfer,
	       active, version, created_at
	FROM sales`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(
		&sale.ID, &sale.BranchID, &sale.Total, &sale.Tax, &sale.Subtotal, &sale.ItemCount,
		&sale.PaidCash, &sale.PaidCard, &sale.PaidCheck, &sale.PaidVoucher, &sale.PaidTransfer,
		&sale.Active, &sale.Version, &sale.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, line_total, active, returned_at, returned_by
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.SaleItem
	for rows.Next() {
		var item domain.SaleItem
		var returnedAt sql.NullTime
		var returnedBy sql.NullString
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.LineTotal, &item.Active, &returnedAt, &returnedBy); err != nil {
			return nil, err
		}
		if returnedAt.Valid {
			at := returnedAt.Time.UTC()
			item.ReturnedAt = &at
		}
		item.ReturnedBy = returnedBy.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, saleID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.ErrNotFound
		}
	}
	return items, nil
}

func (s *Store) GetProductWithComponents(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, branch_id, name, on_hand, unit_cost, tax_rate, is_service, active
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.BranchID, &p.Name, &p.OnHand, &p.UnitCost, &p.TaxRate, &p.IsService, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT component_id, qty_per_unit
		FROM product_components
		WHERE product_id = $1
		ORDER BY position
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Component
		if err := rows.Scan(&c.ProductID, &c.QtyPerUnit); err != nil {
			return nil, err
		}
		p.Components = append(p.Components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.BranchID == "" {
		return nil, store.ErrInvalidRecord
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, branch_id, name, on_hand, unit_cost, tax_rate, is_service, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
	`, product.ID, product.BranchID, product.Name, product.OnHand, product.UnitCost, product.TaxRate, product.IsService, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}
	for i, c := range product.Components {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_components (product_id, component_id, qty_per_unit, position)
			VALUES ($1,$2,$3,$4)
		`, product.ID, c.ProductID, c.QtyPerUnit, i); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.Sale, error) {
	if sale.BranchID == "" {
		return nil, store.ErrInvalidRecord
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.Version == 0 {
		sale.Version = 1
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, branch_id, total, tax, subtotal, item_count,
		                   paid_cash, paid_card, paid_check, paid_voucher, paid_transfer,
		                   active, version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.BranchID, sale.Total, sale.Tax, sale.Subtotal, sale.ItemCount,
		sale.PaidCash, sale.PaidCard, sale.PaidCheck, sale.PaidVoucher, sale.PaidTransfer,
		sale.Active, sale.Version, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, quantity, line_total, active, returned_at, returned_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, items[i].ID, sale.ID, items[i].ProductID, items[i].Quantity, items[i].LineTotal,
			items[i].Active, nullTime(items[i].ReturnedAt), nullIfEmpty(items[i].ReturnedBy)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

// ApplySettlement lands the whole settlement write set in one serializable
// transaction: the item row is locked and guarded against double return,
// every restocked product is locked and incremented with its pre-increment
// quantity and current unit cost captured for the movement rows, and the
// sale deltas only apply while the sale still carries the version the plan
// was computed against.
func (s *Store) ApplySettlement(ctx context.Context, plan domain.Settlement) ([]domain.StockMovement, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var returnedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT returned_at
		FROM sale_items
		WHERE id = $1
		FOR UPDATE
	`, plan.ItemID).Scan(&returnedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translateTxError(err)
	}
	if returnedAt.Valid {
		return nil, store.ErrAlreadyReturned
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sale_items
		SET active = false, returned_at = $2, returned_by = $3
		WHERE id = $1
	`, plan.ItemID, plan.ReturnedAt, plan.ActorID); err != nil {
		return nil, translateTxError(err)
	}

	movements := make([]domain.StockMovement, 0, len(plan.Restocks))
	for _, r := range plan.Restocks {
		var before, unitCost decimal.Decimal
		err := tx.QueryRowContext(ctx, `
			SELECT on_hand, unit_cost
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, r.ProductID).Scan(&before, &unitCost)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, translateTxError(err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET on_hand = on_hand + $2, updated_at = now() WHERE id = $1
		`, r.ProductID, r.Qty); err != nil {
			return nil, translateTxError(err)
		}

		movement := domain.StockMovement{
			ID:        uuid.NewString(),
			ProductID: r.ProductID,
			BranchID:  plan.BranchID,
			Kind:      domain.MovementSaleReturn,
			Qty:       r.Qty,
			QtyBefore: before,
			UnitCost:  unitCost,
			ActorID:   plan.ActorID,
			CreatedAt: plan.ReturnedAt,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, branch_id, kind, qty, qty_before, unit_cost, actor_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, movement.ID, movement.ProductID, movement.BranchID, movement.Kind,
			movement.Qty, movement.QtyBefore, movement.UnitCost, movement.ActorID,
			nullIfEmpty(movement.Note), movement.CreatedAt); err != nil {
			return nil, translateTxError(err)
		}
		movements = append(movements, movement)
	}

	debits := map[string]decimal.Decimal{}
	for _, d := range plan.Debits {
		debits[d.Instrument] = debits[d.Instrument].Add(d.Amount)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET total = total - $2,
		    tax = tax - $3,
		    subtotal = subtotal - $4,
		    item_count = item_count - $5,
		    paid_cash = paid_cash - $6,
		    paid_card = paid_card - $7,
		    paid_check = paid_check - $8,
		    paid_voucher = paid_voucher - $9,
		    paid_transfer = paid_transfer - $10,
		    version = version + 1
		WHERE id = $1 AND version = $11
	`, plan.SaleID,
		plan.SaleDelta.Total, plan.SaleDelta.Tax, plan.SaleDelta.Subtotal, plan.SaleDelta.ItemCount,
		debits[domain.InstrumentCash], debits[domain.InstrumentCard], debits[domain.InstrumentCheck],
		debits[domain.InstrumentVoucher], debits[domain.InstrumentTransfer],
		plan.SaleVersion)
	if err != nil {
		return nil, translateTxError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, plan.SaleID).Scan(&exists); err != nil {
			return nil, translateTxError(err)
		}
		if !exists {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, translateTxError(err)
	}
	return movements, nil
}

func (s *Store) CountActiveSaleItems(ctx context.Context, saleID string) (int, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, saleID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, store.ErrNotFound
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sale_items WHERE sale_id = $1 AND active = true
	`, saleID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) SetSaleActive(ctx context.Context, saleID string, active bool) error {
	// set-if-different keeps the statement a no-op when the flag already
	// matches, so reconciling is always safe to repeat
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales SET active = $2 WHERE id = $1 AND active <> $2
	`, saleID, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, saleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
	}
	return nil
}

func (s *Store) RecordMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	if movement.ProductID == "" || movement.Kind == "" {
		return nil, store.ErrInvalidRecord
	}
	if movement.ID == "" {
		movement.ID = uuid.NewString()
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		SELECT on_hand, unit_cost FROM products WHERE id = $1 FOR UPDATE
	`, movement.ProductID).Scan(&movement.QtyBefore, &movement.UnitCost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translateTxError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET on_hand = on_hand + $2, updated_at = now() WHERE id = $1
	`, movement.ProductID, movement.Qty); err != nil {
		return nil, translateTxError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, branch_id, kind, qty, qty_before, unit_cost, actor_id, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, movement.ID, movement.ProductID, movement.BranchID, movement.Kind,
		movement.Qty, movement.QtyBefore, movement.UnitCost, movement.ActorID,
		nullIfEmpty(movement.Note), movement.CreatedAt); err != nil {
		return nil, translateTxError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, translateTxError(err)
	}

	created := movement
	return &created, nil
}

func (s *Store) ListMovementsByProduct(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, branch_id, kind, qty, qty_before, unit_cost, actor_id, note, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		var note sql.NullString
		if err := rows.Scan(&m.ID, &m.ProductID, &m.BranchID, &m.Kind, &m.Qty, &m.QtyBefore, &m.UnitCost, &m.ActorID, &note, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Note = note.String
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *Store) CreateLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.BranchID == "" || entry.Kind == "" {
		return nil, store.ErrInvalidRecord
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, branch_id, kind, amount, note, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.BranchID, entry.Kind, entry.Amount, nullIfEmpty(entry.Note), entry.Active, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}
	created := entry
	return &created, nil
}

func (s *Store) ListLedgerEntriesSince(ctx context.Context, branchID string, since time.Time) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, kind, amount, note, active, created_at
		FROM ledger_entries
		WHERE branch_id = $1 AND active = true AND created_at > $2
		ORDER BY created_at
	`, branchID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.BranchID, &e.Kind, &e.Amount, &note, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Note = note.String
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) ListCashSalesSince(ctx context.Context, branchID string, since time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, saleSelect+`
		WHERE branch_id = $1 AND active = true AND paid_cash > 0 AND created_at > $2
		ORDER BY created_at
	`, branchID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (s *Store) ListReturnedItemsSince(ctx context.Context, branchID string, since time.Time) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.sale_id, i.product_id, i.quantity, i.line_total, i.active, i.returned_at, i.returned_by
		FROM sale_items i
		JOIN sales s ON s.id = i.sale_id
		WHERE s.branch_id = $1 AND i.returned_at > $2
		ORDER BY i.returned_at
	`, branchID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.SaleItem
	for rows.Next() {
		var item domain.SaleItem
		var returnedAt sql.NullTime
		var returnedBy sql.NullString
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.LineTotal, &item.Active, &returnedAt, &returnedBy); err != nil {
			return nil, err
		}
		if returnedAt.Valid {
			at := returnedAt.Time.UTC()
			item.ReturnedAt = &at
		}
		item.ReturnedBy = returnedBy.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetLastCashCut(ctx context.Context, branchID string, cashierID string) (*domain.CashCut, error) {
	var cut domain.CashCut
	err := s.db.QueryRowContext(ctx, `
		SELECT id, branch_id, cashier_id, cut_at
		FROM cash_cuts
		WHERE branch_id = $1 AND cashier_id = $2
		ORDER BY cut_at DESC
		LIMIT 1
	`, branchID, cashierID).Scan(&cut.ID, &cut.BranchID, &cut.CashierID, &cut.CutAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	cut.CutAt = cut.CutAt.UTC()
	return &cut, nil
}

func (s *Store) CreateCashCut(ctx context.Context, cut domain.CashCut) (*domain.CashCut, error) {
	if cut.BranchID == "" || cut.CashierID == "" {
		return nil, store.ErrInvalidRecord
	}
	if cut.ID == "" {
		cut.ID = uuid.NewString()
	}
	if cut.CutAt.IsZero() {
		cut.CutAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_cuts (id, branch_id, cashier_id, cut_at)
		VALUES ($1,$2,$3,$4)
	`, cut.ID, cut.BranchID, cut.CashierID, cut.CutAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}
	created := cut
	return &created, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidRecord
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRecord
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.UserAccount
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translateTxError maps serialization failures onto the version-conflict
// sentinel so callers retry with fresh state instead of surfacing a 500.
func translateTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return store.ErrVersionConflict
	}
	return err
}

var _ store.Repository = (*Store)(nil)
