package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/cashcut"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/settlement"
	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/store"
)

type API struct {
	engine        *settlement.Engine
	reporter      *cashcut.Reporter
	repo          store.Repository
	auth          *AuthManager
	allowedOrigin string
	branchID      string
	loginLimiter  *attemptLimiter
}

func New(engine *settlement.Engine, reporter *cashcut.Reporter, repo store.Repository, auth *AuthManager, allowedOrigin string, branchID string) *API {
	return &API{
		engine:        engine,
		reporter:      reporter,
		repo:          repo,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		branchID:      branchID,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type ctxKey string

const actorKey ctxKey = "actor"

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func actorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/returns/settle", a.requireAuth(a.handleSettleReturn, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleLookup, "cashier", "admin"))
	mux.HandleFunc("/api/v1/cash-cut/summary", a.requireAuth(a.handleCashCutSummary, "cashier", "admin"))
	mux.HandleFunc("/api/v1/cash-cut", a.requireAuth(a.handleCashCut, "cashier", "admin"))

	mux.HandleFunc("/api/v1/inventory/movements", a.requireAuth(a.handleMovements, "admin"))
	mux.HandleFunc("/api/v1/users/cashiers", a.requireAuth(a.handleCashiers, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(withActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSettleReturn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("missing actor"))
		return
	}

	var req domain.SettleReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.SaleItemID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale_item_id is required"))
		return
	}

	ack, err := a.engine.SettleReturn(r.Context(), req.SaleItemID, actor.Username)
	if err != nil {
		writeSettleFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlement": ack})
}

// writeSettleFailure maps the engine's failure kinds onto HTTP statuses. The
// two 500 kinds deliberately share a generic message; conflict and
// persistence details stay in the server log.
func writeSettleFailure(w http.ResponseWriter, err error) {
	f, ok := settlement.AsFailure(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	switch f.Kind {
	case settlement.KindNotFound:
		writeError(w, http.StatusNotFound, errors.New(f.Message))
	case settlement.KindAlreadyReturned:
		writeError(w, http.StatusBadRequest, errors.New(f.Message))
	default:
		writeError(w, http.StatusInternalServerError, f)
	}
}

func (a *API) handleSaleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	saleID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sales/"), "/"))
	if saleID == "" || strings.Contains(saleID, "/") {
		writeError(w, http.StatusBadRequest, errors.New("invalid sale path"))
		return
	}

	sale, err := a.repo.GetSale(r.Context(), saleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("sale not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	items, err := a.repo.ListSaleItems(r.Context(), saleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale, "items": items})
}

func (a *API) handleCashCutSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	actor, _ := actorFromContext(r.Context())

	branchID := strings.TrimSpace(r.URL.Query().Get("branch_id"))
	if branchID == "" {
		branchID = a.branchID
	}
	cashierID := strings.TrimSpace(r.URL.Query().Get("cashier_id"))
	if cashierID == "" {
		cashierID = actor.Username
	}
	// cashiers can only read their own register
	if actor.Role != "admin" && cashierID != actor.Username {
		writeError(w, http.StatusForbidden, errors.New("cannot read another cashier's summary"))
		return
	}

	summary, err := a.reporter.GetSummary(r.Context(), branchID, cashierID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRecord) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (a *API) handleCashCut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, _ := actorFromContext(r.Context())

	cut, err := a.repo.CreateCashCut(r.Context(), domain.CashCut{
		BranchID:  a.branchID,
		CashierID: actor.Username,
		CutAt:     time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cash_cut": cut})
}

type stockAdjustRequest struct {
	ProductID string          `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	Note      string          `json:"note"`
}

func (a *API) handleMovements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		productID := strings.TrimSpace(r.URL.Query().Get("product_id"))
		if productID == "" {
			writeError(w, http.StatusBadRequest, errors.New("product_id is required"))
			return
		}
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		movements, err := a.repo.ListMovementsByProduct(r.Context(), productID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
	case http.MethodPost:
		actor, _ := actorFromContext(r.Context())
		var req stockAdjustRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(req.ProductID) == "" || req.Qty.IsZero() {
			writeError(w, http.StatusBadRequest, errors.New("product_id and a non-zero qty are required"))
			return
		}
		movement, err := a.repo.RecordMovement(r.Context(), domain.StockMovement{
			ProductID: req.ProductID,
			BranchID:  a.branchID,
			Kind:      domain.MovementManualAdjustment,
			Qty:       req.Qty,
			ActorID:   actor.Username,
			Note:      strings.TrimSpace(req.Note),
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, errors.New("product not found"))
				return
			}
			if errors.Is(err, store.ErrInvalidRecord) {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers()})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := a.auth.CreateCashier(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"cashier": user})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s rid=%s", r.Method, r.URL.Path, time.Since(startedAt), requestID)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
