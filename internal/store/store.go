package store

import (
	"context"
	"errors"
	"time"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyReturned = errors.New("sale item already returned")
	ErrVersionConflict = errors.New("sale version conflict")
	ErrInvalidRecord   = errors.New("invalid record")
)

type Repository interface {
	GetSaleItem(ctx context.Context, itemID string) (*domain.SaleItem, error)
	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
	ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error)
	GetProductWithComponents(ctx context.Context, productID string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	CreateSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.Sale, error)

	// ApplySettlement applies the whole write set atomically: marks the item
	// returned, restocks each product (filling quantity-before and the cost
	// snapshot from state inside the transaction), appends movement rows and
	// applies the sale deltas guarded by plan.SaleVersion. Returns the
	// movement rows it inserted.
	ApplySettlement(ctx context.Context, plan domain.Settlement) ([]domain.StockMovement, error)
	CountActiveSaleItems(ctx context.Context, saleID string) (int, error)
	SetSaleActive(ctx context.Context, saleID string, active bool) error

	RecordMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error)
	ListMovementsByProduct(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error)

	CreateLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListLedgerEntriesSince(ctx context.Context, branchID string, since time.Time) ([]domain.LedgerEntry, error)
	ListCashSalesSince(ctx context.Context, branchID string, since time.Time) ([]domain.Sale, error)
	ListReturnedItemsSince(ctx context.Context, branchID string, since time.Time) ([]domain.SaleItem, error)
	GetLastCashCut(ctx context.Context, branchID string, cashierID string) (*domain.CashCut, error)
	CreateCashCut(ctx context.Context, cut domain.CashCut) (*domain.CashCut, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
