package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/config"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/db"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/migrate"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/repo"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/storage"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/store"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, mutate func(*config.Config, *AuthConfig)) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	authCfg := AuthConfig{JWTSecret: testSecret}
	if mutate != nil {
		mutate(cfg, &authCfg)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger, _ := logtest.NewNullLogger()
	authCfg.Logger = logger
	st := store.New(storage.NewFailover(storage.NewSQLite(repo.Repo{DB: conn}), storage.NewMemory(0), logger))
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	e, err := engine.New(conn, cfg, st, logger)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v1", Auth: authCfg})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func bearer(t *testing.T, id string, role domain.Role) map[string]string {
	t.Helper()
	token, _, err := SignToken(testSecret, domain.Principal{ID: id, Username: id, Role: role}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error: %v (%s)", err, string(data))
	}
	return env.Error.Code
}

func submitWork(t *testing.T, srv *testServer, headers map[string]string, name, cost string) WorkResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/works", map[string]any{
		"sector":       "Roads",
		"proposalName": name,
		"locality":     "Gandhi Nagar",
		"wardNo":       "7",
		"cost":         cost,
		"priority":     1,
		"workImage":    map[string]any{"name": "site.png", "mimeType": "image/png", "content": []byte("png-bytes")},
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}
	var w WorkResponse
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal work: %v", err)
	}
	return w
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d", res.StatusCode)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, bearer(t, "u1", domain.RoleEEPH))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me MeResponse
	_ = json.Unmarshal(data, &me)
	if me.Section != "EEPH" || me.Department != "Public Health Engineering" {
		t.Fatalf("unexpected principal %+v", me)
	}
}

func TestSubmitForwardAndReview(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	eng := bearer(t, "eng1", domain.RoleEngineer)
	com := bearer(t, "com1", domain.RoleCommissioner)

	draft := submitWork(t, srv, eng, "Ward 7 road", "250000")
	if draft.CostDisplay != "₹2,50,000" {
		t.Fatalf("unexpected cost display %q", draft.CostDisplay)
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/works/forward", nil, eng)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("forward status %d: %s", res.StatusCode, string(data))
	}
	var forwarded WorkListResponse
	_ = json.Unmarshal(data, &forwarded)
	if len(forwarded.Items) != 1 || forwarded.Items[0].DraftID != draft.ID {
		t.Fatalf("unexpected forward result %s", string(data))
	}
	work := forwarded.Items[0]
	if !strings.HasPrefix(work.WorkImage, "data:image/png;base64,") {
		t.Fatalf("attachment should be a data uri, got %q", work.WorkImage)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/dashboard/pending", nil, com)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", res.StatusCode, string(data))
	}
	var dash DashboardResponse
	_ = json.Unmarshal(data, &dash)
	if len(dash.Items) != 1 || dash.Counts["pending"] != 1 {
		t.Fatalf("commissioner should have one pending work: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/works/actions", map[string]any{"action": "approve", "ids": []string{work.ID}}, eng)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("engineer approve should be forbidden, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/works/actions", map[string]any{"action": "reject", "ids": []string{work.ID}}, com)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "remarks_required" {
		t.Fatalf("expected remarks_required, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/works/actions", map[string]any{"action": "approve", "ids": []string{work.ID}}, com)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/works/actions", map[string]any{"action": "approve", "ids": []string{work.ID}}, bearer(t, "eeph1", domain.RoleEEPH))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "illegal_transition" {
		t.Fatalf("expected illegal_transition, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/works/"+work.ID, nil, com)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get work status %d: %s", res.StatusCode, string(data))
	}
	var got WorkResponse
	_ = json.Unmarshal(data, &got)
	if got.Status != "Commissioner Approved" || len(got.Actions) != 1 || got.Actions[0] != "forward" {
		t.Fatalf("unexpected work %+v", got)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?entityId="+work.ID, nil, com)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var evts paginatedEvents
	_ = json.Unmarshal(data, &evts)
	if len(evts.Items) != 2 || evts.Items[0].Type != "work.approved" {
		t.Fatalf("expected forward and approve events, got %s", string(data))
	}
}

func TestSubmitErrors(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	eng := bearer(t, "eng1", domain.RoleEngineer)

	submitWork(t, srv, eng, "Big drain", "999900")
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/works", map[string]any{
		"sector": "Roads", "proposalName": "Small", "locality": "L", "wardNo": "1", "cost": "200", "priority": 1,
	}, eng)
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "budget_exceeded" {
		t.Fatalf("expected budget_exceeded, got %d %s", res.StatusCode, string(data))
	}
	if !strings.Contains(string(data), "remaining budget of ₹100") {
		t.Fatalf("message should name the remaining budget: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/cr-cycle", map[string]any{"targetCount": 2, "crNumber": "CR-1", "crDate": "2024-02-01"}, eng)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("open cycle status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/works/forward", nil, eng)
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "cr_shortfall" {
		t.Fatalf("expected cr_shortfall, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/works", map[string]any{
		"sector": "Space", "proposalName": "x", "locality": "L", "wardNo": "1", "cost": "1", "priority": 1,
	}, eng)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sector, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/works", map[string]any{
		"sector": "Roads", "proposalName": "Paise", "locality": "L", "wardNo": "1", "cost": "10.005", "priority": 1,
	}, eng)
	if res.StatusCode != http.StatusBadRequest || !strings.Contains(string(data), "two decimal places") {
		t.Fatalf("expected 400 for sub-paise cost, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/budget", nil, bearer(t, "cdma1", domain.RoleCDMA))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("budget is for engineers, got %d %s", res.StatusCode, string(data))
	}
}

func TestFractionalCycleTargetDiscards(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	eng := bearer(t, "eng1", domain.RoleEngineer)

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v1/cr-cycle", map[string]any{"targetCount": 3, "crNumber": "CR-9", "crDate": "2024-05-01"}, eng)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("open cycle status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/cr-cycle", map[string]any{"targetCount": 2.5, "crNumber": "CR-9", "crDate": "2024-05-01"}, eng)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update cycle status %d: %s", res.StatusCode, string(data))
	}
	var cycle CycleResponse
	if err := json.Unmarshal(data, &cycle); err != nil {
		t.Fatalf("decode cycle: %v", err)
	}
	if cycle.Active {
		t.Fatalf("fractional target should discard the cycle: %s", string(data))
	}
}

func TestEndSessionDropsLocalWorks(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	eng := bearer(t, "eng1", domain.RoleEngineer)

	submitWork(t, srv, eng, "Drain", "500")
	res, data := doJSON(t, client, http.MethodDelete, srv.URL+"/v1/session", nil, eng)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("end session status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/works/local", nil, eng)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("local works status %d: %s", res.StatusCode, string(data))
	}
	var list WorkListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("local works should be dropped, got %d", len(list.Items))
	}
}

func TestDevLogin(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	res, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{"userId": "u1", "role": "cdma"}, nil)
	cleanup()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("dev login should be disabled, got %d", res.StatusCode)
	}

	srv, cleanup = newTestServer(t, func(_ *config.Config, a *AuthConfig) { a.DevLogin = true })
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{"userId": "u1", "role": "CDMA"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	_ = json.Unmarshal(data, &login)
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"role":"cdma"`) {
		t.Fatalf("minted token should authenticate: %d %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{"userId": "u1", "role": "mayor"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown role should be rejected, got %d", res.StatusCode)
	}
}

func TestWebhookDeliversFinalApproval(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhookEvent
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		received = append(received, evt)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	srv, cleanup := newTestServer(t, func(c *config.Config, _ *AuthConfig) {
		c.Webhooks = []config.Webhook{{URL: hook.URL, Events: []string{"work.approved"}}}
	})
	defer cleanup()
	ctx := context.Background()
	e := srv.Engine
	d := NewWebhookDispatcher(e.Repo, e.Config, nil)
	d.DispatchAll(ctx)

	p := domain.Principal{ID: "eng1", Username: "eng1", Role: domain.RoleEngineer}
	if _, err := e.Submit(ctx, p, engine.Draft{Sector: "Roads", ProposalName: "Lights", Locality: "L", WardNo: "3", Priority: 1}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	works, err := e.Forward(ctx, p)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	com := domain.Principal{ID: "com1", Username: "com1", Role: domain.RoleCommissioner}
	if _, err := e.Approve(ctx, com, works[0].ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one delivery, got %d", len(received))
	}
	if received[0].Type != "work.approved" || received[0].EntityID != works[0].ID {
		t.Fatalf("unexpected delivery %+v", received[0])
	}
}
