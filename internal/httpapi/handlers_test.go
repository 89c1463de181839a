package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tower/internal/auth"
	"finance-tower/internal/finance"
	"finance-tower/internal/identity"
	"finance-tower/internal/ledger"
	"finance-tower/pkg/logger"
	"finance-tower/pkg/utils"
)

const testUserHeader = "X-Test-User"

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := utils.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, ledger.Migrate(ctx, db, ledger.DialectSQLite))

	// Each call advances one second so newest-first ordering is unambiguous.
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	svc := finance.NewService(ledger.New(db), finance.Config{
		Directory: identity.StaticDirectory{"alice": "Alice", "bob": "Bob"},
		Clock:     clock,
	})
	members := identity.StaticMembership{"p1": {"alice": "owner", "bob": "member"}}

	r := gin.New()
	r.Use(logger.Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	r.GET("/healthz", Healthz(db))
	v1 := r.Group("/v1")
	v1.Use(func(c *gin.Context) {
		if uid := c.GetHeader(testUserHeader); uid != "" {
			c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), uid))
		}
		c.Next()
	})
	RegisterFinanceRoutes(v1, Handlers{Finance: svc}, members)
	return api{t: t, router: r}
}

func (a api) do(method, path, user string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const base = "/v1/projects/p1/finance"

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBudgetFlow(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, base+"/overview", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodPut, base+"/budget", "bob", map[string]any{"total_budget": 10000})
	assert.Equal(t, http.StatusForbidden, w.Code, "members cannot change budgets")

	w = a.do(http.MethodPut, base+"/budget", "alice", map[string]any{"total_budget": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPut, base+"/budget", "alice", map[string]any{"total_budget": 10000, "reason": "kickoff"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, base+"/overview", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ov := decode[map[string]any](t, w)
	assert.Equal(t, float64(10000), ov["total_budget"])
	assert.Equal(t, "USD", ov["currency"])
	assert.Nil(t, ov["runway_months"])
}

func TestAmountsOutsideColumnRangeAreBadRequests(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPut, base+"/budget", "alice", map[string]any{"total_budget": json.RawMessage("1000000000000")})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = a.do(http.MethodPost, base+"/requests", "bob", map[string]any{
		"amount": json.RawMessage("0.005"), "justification": "rounding",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestRequestApprovalFlow(t *testing.T) {
	a := newAPI(t)
	a.do(http.MethodPut, base+"/budget", "alice", map[string]any{"total_budget": 10000})

	w := a.do(http.MethodPost, base+"/requests", "bob", map[string]any{"amount": 2500, "category": "travel", "justification": "offsite"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	id := created["id"].(string)
	assert.Equal(t, "pending", created["status"])

	w = a.do(http.MethodPatch, base+"/requests/"+id+"/approve", "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPatch, base+"/requests/"+id+"/approve", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPatch, base+"/requests/"+id+"/reject", "alice", map[string]any{"note": "changed my mind"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodGet, base+"/requests/"+id, "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, "approved", got["status"])
	assert.Equal(t, "Bob", got["requester_name"])
	assert.Equal(t, "Alice", got["approver_name"])

	w = a.do(http.MethodGet, base+"/overview", "alice", nil)
	ov := decode[map[string]any](t, w)
	assert.Equal(t, float64(2500), ov["budget_used"])
	assert.Equal(t, float64(7500), ov["remaining"])
	assert.Equal(t, float64(25), ov["used_percent"])

	w = a.do(http.MethodGet, base+"/requests?status=bogus", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, base+"/requests/unknown", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDisbursementFlow(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, base+"/disbursements", "alice", map[string]any{"recipient_id": "bob", "amount": 700, "category": "payroll"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["id"].(string)

	w = a.do(http.MethodPatch, base+"/disbursements/"+id+"/status", "alice", map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.do(http.MethodPatch, base+"/disbursements/"+id+"/status", "alice", map[string]any{"status": "paid"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = a.do(http.MethodPatch, base+"/disbursements/missing/status", "alice", map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodPost, base+"/disbursements/approve-all", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payout := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), payout["paid_count"])
	assert.Equal(t, float64(700), payout["total"])

	w = a.do(http.MethodGet, base+"/disbursements", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "paid", list[0]["status"])
	assert.Equal(t, "Bob", list[0]["recipient_name"])

	w = a.do(http.MethodGet, base+"/forecast", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fc := decode[map[string]any](t, w)
	assert.Equal(t, float64(700), fc["avg_monthly_burn"])

	w = a.do(http.MethodGet, base+"/audit?limit=1", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]map[string]any](t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, "BATCH_PAYROLL_APPROVED", entries[0]["action"])
	assert.Equal(t, "Alice", entries[0]["actor_name"])

	w = a.do(http.MethodGet, base+"/audit?limit=x", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutsidersAreForbidden(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/v1/projects/p2/finance/overview", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = a.do(http.MethodGet, base+"/overview", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
