package cashcut

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/cache"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/store"
)

// kindOrder fixes the presentation order of per-kind totals. Kinds outside
// this list (none today) would sort after it alphabetically.
var kindOrder = []string{
	domain.EntryCashDeposit,
	domain.EntrySale,
	domain.EntryExpense,
	domain.EntryWithdrawal,
	domain.EntryInvestment,
	domain.EntryPurchase,
	domain.EntryPurchaseReturn,
	domain.EntrySaleReturn,
	domain.EntryItemReturn,
}

// Reporter aggregates everything that moved money at a register since the
// cashier's last cash cut. Strictly read-only: it never writes rows and
// never mutates a cut.
type Reporter struct {
	repo  store.Repository
	cache cache.SummaryCache
	ttl   time.Duration
}

func NewReporter(repo store.Repository, summaryCache cache.SummaryCache, ttl time.Duration) *Reporter {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	return &Reporter{repo: repo, cache: summaryCache, ttl: ttl}
}

func summaryKey(branchID, cashierID string) string {
	return fmt.Sprintf("cashcut:summary:%s:%s", branchID, cashierID)
}

// GetSummary builds the cash-cut summary for one cashier at one branch.
// With no prior cut on record, the window opens at the beginning of time so
// the first cut of a register covers its whole history.
func (r *Reporter) GetSummary(ctx context.Context, branchID string, cashierID string) (*domain.CashCutSummary, error) {
	if branchID == "" || cashierID == "" {
		return nil, fmt.Errorf("branch and cashier ids are required: %w", store.ErrInvalidRecord)
	}

	key := summaryKey(branchID, cashierID)
	if cached, ok, err := r.cache.Get(ctx, key); err != nil {
		log.Printf("[cashcut] WARN: summary cache read failed: %v", err)
	} else if ok {
		return cached, nil
	}

	var since time.Time
	cut, err := r.repo.GetLastCashCut(ctx, branchID, cashierID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// no cut yet, window covers all history
	case err != nil:
		return nil, fmt.Errorf("load last cash cut: %w", err)
	default:
		since = cut.CutAt
	}

	entries, err := r.repo.ListLedgerEntriesSince(ctx, branchID, since)
	if err != nil {
		return nil, fmt.Errorf("load ledger entries: %w", err)
	}
	cashSales, err := r.repo.ListCashSalesSince(ctx, branchID, since)
	if err != nil {
		return nil, fmt.Errorf("load cash sales: %w", err)
	}
	returnedItems, err := r.repo.ListReturnedItemsSince(ctx, branchID, since)
	if err != nil {
		return nil, fmt.Errorf("load returned items: %w", err)
	}

	rows := make([]domain.CashCutRow, 0, len(entries)+len(cashSales)+len(returnedItems))
	for _, e := range entries {
		rows = append(rows, domain.CashCutRow{Kind: e.Kind, Amount: e.Amount, Note: e.Note, At: e.CreatedAt})
	}
	for _, sale := range cashSales {
		rows = append(rows, domain.CashCutRow{Kind: domain.EntrySale, Amount: sale.PaidCash, Note: sale.ID, At: sale.CreatedAt})
	}
	for _, item := range returnedItems {
		rows = append(rows, domain.CashCutRow{Kind: domain.EntryItemReturn, Amount: item.LineTotal, Note: item.ID, At: *item.ReturnedAt})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.Before(rows[j].At) })

	summary := &domain.CashCutSummary{
		BranchID:  branchID,
		CashierID: cashierID,
		Since:     since,
		Totals:    sumByKind(rows),
		Rows:      rows,
	}

	if err := r.cache.Set(ctx, key, summary, r.ttl); err != nil {
		log.Printf("[cashcut] WARN: summary cache write failed: %v", err)
	}
	return summary, nil
}

func sumByKind(rows []domain.CashCutRow) []domain.CashCutKindTotal {
	byKind := map[string]domain.CashCutKindTotal{}
	var extras []string
	for _, row := range rows {
		total, seen := byKind[row.Kind]
		if !seen {
			total = domain.CashCutKindTotal{Kind: row.Kind}
			if !isKnownKind(row.Kind) {
				extras = append(extras, row.Kind)
			}
		}
		total.Total = total.Total.Add(row.Amount)
		byKind[row.Kind] = total
	}

	sort.Strings(extras)
	out := make([]domain.CashCutKindTotal, 0, len(byKind))
	for _, kind := range append(append([]string(nil), kindOrder...), extras...) {
		if total, ok := byKind[kind]; ok {
			out = append(out, total)
		}
	}
	return out
}

func isKnownKind(kind string) bool {
	for _, k := range kindOrder {
		if k == kind {
			return true
		}
	}
	return false
}
