package www

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"maintcore/config"
	"maintcore/engine"
	"maintcore/store"
	"maintcore/telemetry"
	"maintcore/workorder"
)

const testKey = "test-key"

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// memAdmins is an in-memory AdminStore.
type memAdmins struct {
	mu    sync.Mutex
	users map[string]*store.AdminUser
}

func (m *memAdmins) GetAdminUser(username string) (*store.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *memAdmins) AdminUserExists() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users) > 0, nil
}

func (m *memAdmins) CreateAdminUser(username, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = &store.AdminUser{Username: username, PasswordHash: hash}
	return nil
}

func testServer(t *testing.T, mutate func(*config.Config)) (http.Handler, *engine.Engine) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Web.APIKeys = []string{testKey}
	cfg.Web.RatePerSecond = 1000
	cfg.Web.RateBurst = 1000
	if mutate != nil {
		mutate(cfg)
	}
	eng, err := engine.New(engine.Config{
		AppConfig: cfg,
		Clock:     func() time.Time { return t0 },
		LogFunc:   t.Logf,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.Start()
	t.Cleanup(eng.Stop)

	handler, stop := NewRouter(eng, Options{
		Admins:        &memAdmins{users: make(map[string]*store.AdminUser)},
		Notifications: NewNotificationHub(),
	})
	t.Cleanup(stop)
	return handler, eng
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string, body any, mod func(*http.Request)) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if mod != nil {
		mod(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func withKey(r *http.Request) { r.Header.Set("X-API-Key", testKey) }

func login(t *testing.T, h http.Handler) []*http.Cookie {
	t.Helper()
	form := url.Values{"username": {"admin"}, "password": {"admin"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no session cookie")
	}
	return cookies
}

func withCookies(cookies []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func lowHealth() telemetry.ComponentHealth {
	return telemetry.ComponentHealth{Name: "Main Spindle", Health: 65, RUL: 600, Trend: telemetry.TrendStable}
}

func TestHealthCheck(t *testing.T) {
	h, _ := testServer(t, nil)
	rec, env := do(t, h, http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var data map[string]any
	json.Unmarshal(env.Data, &data)
	if data["status"] != "ok" {
		t.Errorf("status = %v", data["status"])
	}
	if data["messaging"] != false {
		t.Errorf("messaging = %v, want false without a client", data["messaging"])
	}
}

func TestIngestionRequiresAPIKey(t *testing.T) {
	h, _ := testServer(t, nil)

	tests := []struct {
		name string
		mod  func(*http.Request)
		want int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", func(r *http.Request) { r.Header.Set("X-API-Key", "nope") }, http.StatusUnauthorized},
		{"header", withKey, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+testKey) }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodPost, "/api/telemetry/health", lowHealth(), tt.mod)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSubmitHealthCreatesWorkOrder(t *testing.T) {
	h, _ := testServer(t, nil)

	rec, env := do(t, h, http.MethodPost, "/api/telemetry/health", lowHealth(), withKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out engine.Outcome
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if out.WorkOrder == nil || out.WorkOrder.Status != workorder.StatusScheduled {
		t.Fatalf("work order = %+v", out.WorkOrder)
	}

	rec, env = do(t, h, http.MethodGet, "/api/work-orders/"+out.WorkOrder.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get work order: status %d", rec.Code)
	}
	var wo workorder.WorkOrder
	json.Unmarshal(env.Data, &wo)
	if wo.ID != out.WorkOrder.ID {
		t.Errorf("id = %s, want %s", wo.ID, out.WorkOrder.ID)
	}

	_, env = do(t, h, http.MethodGet, "/api/decisions", nil, nil)
	var ds []map[string]any
	json.Unmarshal(env.Data, &ds)
	if len(ds) != 1 {
		t.Errorf("decisions = %d, want 1", len(ds))
	}
}

func TestInvalidInputIsBadRequest(t *testing.T) {
	h, _ := testServer(t, nil)

	bad := lowHealth()
	bad.Health = 140
	rec, env := do(t, h, http.MethodPost, "/api/telemetry/health", bad, withKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Error == "" {
		t.Error("expected an error message")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/anomalies", strings.NewReader("{not json"))
	withKey(req)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rr.Code)
	}
}

func TestUnknownWorkOrderIsNotFound(t *testing.T) {
	h, _ := testServer(t, nil)
	rec, _ := do(t, h, http.MethodGet, "/api/work-orders/wo-missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestOperatorRoutesRequireLogin(t *testing.T) {
	h, _ := testServer(t, nil)

	_, env := do(t, h, http.MethodPost, "/api/telemetry/health", lowHealth(), withKey)
	var out engine.Outcome
	json.Unmarshal(env.Data, &out)
	path := "/api/work-orders/" + out.WorkOrder.ID + "/start"

	rec, _ := do(t, h, http.MethodPost, path, nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous start: status %d, want 401", rec.Code)
	}

	cookies := login(t, h)
	rec, env = do(t, h, http.MethodPost, path, nil, withCookies(cookies))
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status %d: %s", rec.Code, rec.Body.String())
	}
	var wo workorder.WorkOrder
	json.Unmarshal(env.Data, &wo)
	if wo.Status != workorder.StatusInProgress {
		t.Errorf("status = %s, want in-progress", wo.Status)
	}

	// Starting twice is a conflict.
	rec, _ = do(t, h, http.MethodPost, path, nil, withCookies(cookies))
	if rec.Code != http.StatusConflict {
		t.Errorf("second start: status %d, want 409", rec.Code)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/work-orders/"+out.WorkOrder.ID+"/complete", nil, withCookies(cookies))
	if rec.Code != http.StatusOK {
		t.Errorf("complete: status %d", rec.Code)
	}

	_, env = do(t, h, http.MethodGet, "/api/audit?limit=1", nil, nil)
	var entries []map[string]any
	json.Unmarshal(env.Data, &entries)
	if len(entries) != 1 || entries[0]["actor"] != "admin" {
		t.Errorf("latest audit entry = %+v, want actor admin", entries)
	}
}

func TestBadLogin(t *testing.T) {
	h, _ := testServer(t, nil)
	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPurchaseOrderFlow(t *testing.T) {
	h, _ := testServer(t, nil)
	cookies := login(t, h)

	// Upper Punch Set starts out of stock, so replenishment raises one order.
	rec, env := do(t, h, http.MethodPost, "/api/replenish", nil, withCookies(cookies))
	if rec.Code != http.StatusOK {
		t.Fatalf("replenish: status %d", rec.Code)
	}
	var pos []workorder.PurchaseOrder
	json.Unmarshal(env.Data, &pos)
	if len(pos) != 1 {
		t.Fatalf("purchase orders = %d, want 1", len(pos))
	}

	path := "/api/purchase-orders/" + pos[0].ID + "/status"
	rec, _ = do(t, h, http.MethodPost, path, map[string]string{"status": "received"}, withCookies(cookies))
	if rec.Code != http.StatusOK {
		t.Fatalf("receive: status %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = do(t, h, http.MethodPost, path, map[string]string{"status": "approved"}, withCookies(cookies))
	if rec.Code != http.StatusConflict {
		t.Errorf("backwards transition: status %d, want 409", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h, _ := testServer(t, func(c *config.Config) {
		c.Web.RatePerSecond = 0.001
		c.Web.RateBurst = 1
	})
	rec, _ := do(t, h, http.MethodPost, "/api/telemetry/health", lowHealth(), withKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodPost, "/api/telemetry/health", lowHealth(), withKey)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status %d, want 429", rec.Code)
	}
}

func TestKeyLimiterIsPerKey(t *testing.T) {
	l := NewKeyLimiter(0.001, 1)
	if !l.Allow("a") || !l.Allow("b") {
		t.Fatal("first request per key must pass")
	}
	if l.Allow("a") {
		t.Error("second request for a should be limited")
	}
	if !NewKeyLimiter(0, 0).Allow("x") {
		t.Error("zero rate should disable limiting")
	}
}

func TestIdleWindowQuery(t *testing.T) {
	h, _ := testServer(t, nil)
	body := map[string]any{
		"batches": []telemetry.ScheduledBatch{
			{ID: "B1", StartTime: t0, EndTime: t0.Add(3 * time.Hour), Status: telemetry.BatchInProgress},
		},
		"duration_hours": 2,
	}
	rec, env := do(t, h, http.MethodPost, "/api/idle-window", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Window struct {
			Start time.Time `json:"start"`
		} `json:"window"`
	}
	json.Unmarshal(env.Data, &data)
	if !data.Window.Start.Equal(t0.Add(3 * time.Hour)) {
		t.Errorf("start = %v, want %v", data.Window.Start, t0.Add(3*time.Hour))
	}

	rec, _ = do(t, h, http.MethodPost, "/api/idle-window", map[string]any{"duration_hours": 0}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero duration: status %d, want 400", rec.Code)
	}
}

func TestRULPredict(t *testing.T) {
	h, _ := testServer(t, nil)
	rec, env := do(t, h, http.MethodPost, "/api/rul/predict", map[string]any{
		"component_name": "Main Spindle", "current_health": 80, "operating_hours": 1000,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var p map[string]any
	json.Unmarshal(env.Data, &p)
	if p["component_name"] != "Main Spindle" {
		t.Errorf("prediction = %+v", p)
	}
}

func TestEventHubForwardsEngineEvents(t *testing.T) {
	_, eng := testServer(t, nil)

	hub := NewEventHub()
	hub.Start()
	defer hub.Stop()
	id := hub.SetupEngineListeners(eng)
	defer eng.Events.Unsubscribe(id)

	all := hub.AddClient()
	defer hub.RemoveClient(all)
	orders := hub.AddClient("work-order-created")
	defer hub.RemoveClient(orders)

	if _, err := eng.SubmitHealth(context.Background(), lowHealth()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	seen := make(map[string]bool)
	timeout := time.After(2 * time.Second)
	for !seen["work-order-created"] {
		select {
		case evt := <-all.ch:
			seen[evt.Event] = true
		case <-timeout:
			t.Fatalf("no work-order-created event; saw %v", seen)
		}
	}
	if !seen["decision-recorded"] {
		t.Errorf("expected decision-recorded before work-order-created; saw %v", seen)
	}

	select {
	case evt := <-orders.ch:
		if evt.Event != "work-order-created" {
			t.Errorf("filtered client got %s", evt.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("filtered client got nothing")
	}
}
