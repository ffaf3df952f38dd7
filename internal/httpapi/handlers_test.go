package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/cashcut"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/settlement"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/store/memory"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

// newTestAPI builds a full API with an in-memory store, real AuthManager,
// real engine and real reporter so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()

	for _, u := range []domain.UserAccount{
		{Username: "admin", Password: "admin-secret", Role: "admin", Active: true, CreatedAt: time.Now().UTC()},
		{Username: "cashier", Password: "cashier-secret", Role: "cashier", Active: true, CreatedAt: time.Now().UTC()},
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	if _, err := repo.CreateProduct(ctx, domain.Product{
		ID: "p-cafe", BranchID: "b1", Name: "Café Molido 500g",
		OnHand: dec(t, "10"), UnitCost: dec(t, "85"), TaxRate: dec(t, "16"), Active: true,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := repo.CreateSale(ctx, domain.Sale{
		ID: "s1", BranchID: "b1",
		Total: dec(t, "116"), Tax: dec(t, "16"), Subtotal: dec(t, "100"), ItemCount: 2,
		PaidCash: dec(t, "50"), PaidCard: dec(t, "40"), PaidCheck: dec(t, "30"),
		PaidVoucher: dec(t, "20"), PaidTransfer: dec(t, "10"), Active: true,
	}, []domain.SaleItem{
		{ID: "i1", ProductID: "p-cafe", Quantity: 2, LineTotal: dec(t, "116"), Active: true},
	}); err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	auth := NewAuthManager("test-secret-test-secret-test-secret", time.Hour, repo)
	engine := settlement.NewEngine(repo, settlement.FixedOrderReversal{}, 3)
	reporter := cashcut.NewReporter(repo, nil, time.Minute)
	api := New(engine, reporter, repo, auth, "http://127.0.0.1:3000", "b1")
	return api.Handler(), repo
}

func loginToken(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func doJSON(handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSettleReturnEndpoint(t *testing.T) {
	handler, repo := newTestAPI(t)
	token := loginToken(t, handler, "cashier", "cashier-secret")

	rec := doJSON(handler, http.MethodPost, "/api/v1/returns/settle", token, `{"sale_item_id":"i1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settle: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Settlement domain.SettleAck `json:"settlement"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode settle response: %v", err)
	}
	if !resp.Settlement.LineTax.Equal(dec(t, "16")) || !resp.Settlement.LineSubtotal.Equal(dec(t, "100")) {
		t.Fatalf("settlement split = %s / %s, want 16 / 100", resp.Settlement.LineTax, resp.Settlement.LineSubtotal)
	}
	if resp.Settlement.SaleActive {
		t.Fatalf("sale should be inactive after settling its only item")
	}

	item, err := repo.GetSaleItem(context.Background(), "i1")
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	if !item.Returned() || item.ReturnedBy != "cashier" {
		t.Fatalf("item not attributed to the acting cashier: %+v", item)
	}

	// replay is a client error, not a second settlement
	rec = doJSON(handler, http.MethodPost, "/api/v1/returns/settle", token, `{"sale_item_id":"i1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replay: status %d, want 400", rec.Code)
	}

	rec = doJSON(handler, http.MethodPost, "/api/v1/returns/settle", token, `{"sale_item_id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown item: status %d, want 404", rec.Code)
	}

	rec = doJSON(handler, http.MethodPost, "/api/v1/returns/settle", "", `{"sale_item_id":"i1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous settle: status %d, want 401", rec.Code)
	}
}

func TestSaleLookupEndpoint(t *testing.T) {
	handler, _ := newTestAPI(t)
	token := loginToken(t, handler, "cashier", "cashier-secret")

	rec := doJSON(handler, http.MethodGet, "/api/v1/sales/s1", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sale lookup: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Sale  domain.Sale       `json:"sale"`
		Items []domain.SaleItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if resp.Sale.ID != "s1" || len(resp.Items) != 1 {
		t.Fatalf("unexpected sale payload: %+v", resp)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/sales/missing", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing sale: status %d, want 404", rec.Code)
	}
}

func TestCashCutSummaryEndpoint(t *testing.T) {
	handler, _ := newTestAPI(t)
	cashierToken := loginToken(t, handler, "cashier", "cashier-secret")
	adminToken := loginToken(t, handler, "admin", "admin-secret")

	rec := doJSON(handler, http.MethodGet, "/api/v1/cash-cut/summary", cashierToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("own summary: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Summary domain.CashCutSummary `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if resp.Summary.CashierID != "cashier" || resp.Summary.BranchID != "b1" {
		t.Fatalf("summary scoped wrong: %+v", resp.Summary)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/cash-cut/summary?cashier_id=admin", cashierToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-cashier read: status %d, want 403", rec.Code)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/cash-cut/summary?cashier_id=cashier", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin read: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterCashCutEndpoint(t *testing.T) {
	handler, repo := newTestAPI(t)
	token := loginToken(t, handler, "cashier", "cashier-secret")

	rec := doJSON(handler, http.MethodPost, "/api/v1/cash-cut", token, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register cut: status %d body %s", rec.Code, rec.Body.String())
	}
	cut, err := repo.GetLastCashCut(context.Background(), "b1", "cashier")
	if err != nil {
		t.Fatalf("load cut: %v", err)
	}
	if cut.CashierID != "cashier" {
		t.Fatalf("cut attributed to %s, want cashier", cut.CashierID)
	}
}

func TestMovementsEndpoint(t *testing.T) {
	handler, repo := newTestAPI(t)
	cashierToken := loginToken(t, handler, "cashier", "cashier-secret")
	adminToken := loginToken(t, handler, "admin", "admin-secret")

	rec := doJSON(handler, http.MethodGet, "/api/v1/inventory/movements?product_id=p-cafe", cashierToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cashier movements read: status %d, want 403", rec.Code)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/inventory/movements", adminToken, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing product_id: status %d, want 400", rec.Code)
	}

	rec = doJSON(handler, http.MethodPost, "/api/v1/inventory/movements", adminToken,
		`{"product_id":"p-cafe","qty":"-3","note":"merma"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("manual adjustment: status %d body %s", rec.Code, rec.Body.String())
	}

	product, err := repo.GetProductWithComponents(context.Background(), "p-cafe")
	if err != nil {
		t.Fatalf("load product: %v", err)
	}
	if !product.OnHand.Equal(dec(t, "7")) {
		t.Fatalf("on hand = %s after adjustment, want 7", product.OnHand)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/inventory/movements?product_id=p-cafe", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("movements read: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Movements []domain.StockMovement `json:"movements"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode movements: %v", err)
	}
	if len(resp.Movements) != 1 || resp.Movements[0].Kind != domain.MovementManualAdjustment {
		t.Fatalf("unexpected movements payload: %+v", resp.Movements)
	}
	if !resp.Movements[0].QtyBefore.Equal(dec(t, "10")) {
		t.Fatalf("adjustment qty-before = %s, want 10", resp.Movements[0].QtyBefore)
	}
}

func TestCashierManagementEndpoint(t *testing.T) {
	handler, _ := newTestAPI(t)
	adminToken := loginToken(t, handler, "admin", "admin-secret")

	rec := doJSON(handler, http.MethodPost, "/api/v1/users/cashiers", adminToken,
		`{"username":"cajeranueva","password":"secreto9"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cashier: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/users/cashiers", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list cashiers: status %d", rec.Code)
	}
	var resp struct {
		Cashiers []domain.CashierUser `json:"cashiers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode cashiers: %v", err)
	}
	found := false
	for _, c := range resp.Cashiers {
		if c.Username == "cajeranueva" {
			found = true
		}
	}
	if !found {
		t.Fatalf("new cashier not listed: %+v", resp.Cashiers)
	}

	if tok := loginToken(t, handler, "cajeranueva", "secreto9"); tok == "" {
		t.Fatalf("new cashier cannot log in")
	}
}
