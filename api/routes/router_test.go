package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/chorepay-backend/internal/ledger"
	"github.com/angelmondragon/chorepay-backend/internal/profiles"
	"github.com/angelmondragon/chorepay-backend/internal/tasks"
	pkgAuth "github.com/angelmondragon/chorepay-backend/pkg/auth"
	"github.com/angelmondragon/chorepay-backend/pkg/config"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	counts  map[string]int64
	pingErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}, counts: map[string]int64{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeCache) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (f *fakeCache) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCache) Ping(context.Context) error {
	return f.pingErr
}

type stubLedger struct {
	mu       sync.Mutex
	payments []ledger.TaskPaymentInput
	balances []string
}

func (s *stubLedger) RecordTaskPayment(_ context.Context, input ledger.TaskPaymentInput) (*ledger.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, input)
	return &ledger.Result{TransactionID: "txn-1", NextBalanceCents: 1250}, nil
}

func (s *stubLedger) RecordAdvance(context.Context, ledger.AdvanceInput) (*ledger.Result, error) {
	return &ledger.Result{TransactionID: "txn-2"}, nil
}

func (s *stubLedger) RecordManualAdjustment(context.Context, ledger.AdjustmentInput) (*ledger.Result, error) {
	return &ledger.Result{TransactionID: "txn-3"}, nil
}

func (s *stubLedger) RecordWithdrawalRequest(context.Context, ledger.WithdrawalRequestInput) (*ledger.Result, error) {
	return &ledger.Result{TransactionID: "txn-4", NextBalanceCents: 1250}, nil
}

func (s *stubLedger) FinalizeWithdrawal(context.Context, ledger.FinalizeWithdrawalInput) (*ledger.Result, error) {
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal already settled")
}

func (s *stubLedger) RejectWithdrawal(context.Context, ledger.RejectWithdrawalInput) (*ledger.Result, error) {
	return &ledger.Result{TransactionID: "txn-4", NextBalanceCents: 1250}, nil
}

func (s *stubLedger) RecordGoalAllocation(context.Context, ledger.GoalAllocationInput) (*ledger.Result, error) {
	return &ledger.Result{TransactionID: "txn-5"}, nil
}

func (s *stubLedger) GetBalance(_ context.Context, householdID, profileID string) (*ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = append(s.balances, householdID+"/"+profileID)
	return &ledger.Balance{HouseholdID: householdID, ProfileID: profileID, BalanceCents: 1250, Balance: "12.50"}, nil
}

func (s *stubLedger) ListTransactions(context.Context, ledger.ListTransactionsParams) (*ledger.TransactionPage, error) {
	return &ledger.TransactionPage{}, nil
}

type stubProfiles struct{}

func (stubProfiles) Create(_ context.Context, input profiles.CreateProfileInput) (*profiles.ProfileDTO, error) {
	return &profiles.ProfileDTO{HouseholdID: input.HouseholdID, ID: "kid-new", DisplayName: input.DisplayName}, nil
}

func (stubProfiles) Get(_ context.Context, householdID, profileID string) (*profiles.ProfileDTO, error) {
	return &profiles.ProfileDTO{HouseholdID: householdID, ID: profileID}, nil
}

func (stubProfiles) List(context.Context, string) ([]profiles.ProfileDTO, error) {
	return []profiles.ProfileDTO{}, nil
}

func (stubProfiles) AddGoal(_ context.Context, input profiles.AddGoalInput) (*profiles.ProfileDTO, error) {
	return &profiles.ProfileDTO{HouseholdID: input.HouseholdID, ID: input.ProfileID}, nil
}

type stubTasks struct {
	mu    sync.Mutex
	lists []tasks.ListTasksParams
}

func (s *stubTasks) Create(_ context.Context, input tasks.CreateTaskInput) (*tasks.TaskDTO, error) {
	return &tasks.TaskDTO{ID: "task-new", HouseholdID: input.HouseholdID}, nil
}

func (s *stubTasks) Get(_ context.Context, householdID, taskID string) (*tasks.TaskDTO, error) {
	return &tasks.TaskDTO{ID: taskID, HouseholdID: householdID}, nil
}

func (s *stubTasks) List(_ context.Context, params tasks.ListTasksParams) (*tasks.TaskPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = append(s.lists, params)
	return &tasks.TaskPage{}, nil
}

func (s *stubTasks) Submit(_ context.Context, input tasks.SubmitTaskInput) (*tasks.TaskDTO, error) {
	return &tasks.TaskDTO{ID: input.TaskID}, nil
}

func (s *stubTasks) Reject(_ context.Context, _, taskID string) (*tasks.TaskDTO, error) {
	return &tasks.TaskDTO{ID: taskID}, nil
}

func (s *stubTasks) Delete(context.Context, string, string) error {
	return nil
}

type testRouter struct {
	handler http.Handler
	cfg     *config.Config
	cache   *fakeCache
	ledger  *stubLedger
	tasks   *stubTasks
}

func newTestRouter(t *testing.T, dbErr error) *testRouter {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "chorepay", ExpirationMinutes: 60},
	}
	tr := &testRouter{cfg: cfg, cache: newFakeCache(), ledger: &stubLedger{}, tasks: &stubTasks{}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: &strings.Builder{}, Format: "json"})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	tr.handler = NewRouter(cfg, logg, stubPinger{err: dbErr}, tr.cache, Services{
		Ledger:   tr.ledger,
		Profiles: stubProfiles{},
		Tasks:    tr.tasks,
	}, metrics)
	return tr
}

func (tr *testRouter) token(t *testing.T, role enums.MemberRole, profileID string) string {
	t.Helper()
	payload := pkgAuth.AccessTokenPayload{UserID: "user-" + string(role), HouseholdID: "house-1", Role: role}
	if profileID != "" {
		payload.ProfileID = &profileID
	}
	token, err := pkgAuth.MintAccessToken(tr.cfg.JWT, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (tr *testRouter) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	tr.handler.ServeHTTP(resp, req)
	return resp
}

func authed(method, path, token, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	return payload.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	tr := newTestRouter(t, nil)

	live := tr.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if live.Code != http.StatusOK {
		t.Fatalf("expected live 200 got %d", live.Code)
	}
	if live.Header().Get("X-Chorepay-Env") != "test" {
		t.Fatalf("expected env header")
	}

	ready := tr.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if ready.Code != http.StatusOK {
		t.Fatalf("expected ready 200 got %d", ready.Code)
	}
}

func TestReadinessFailsWhenDatabaseDown(t *testing.T) {
	tr := newTestRouter(t, errors.New("connection refused"))

	resp := tr.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "database") {
		t.Fatalf("expected failing dependency named, got %s", resp.Body.String())
	}
}

func TestMetricsRouteMounted(t *testing.T) {
	tr := newTestRouter(t, nil)

	resp := tr.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "# metrics") {
		t.Fatalf("expected metrics handler, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestAPIRejectsMissingJWT(t *testing.T) {
	tr := newTestRouter(t, nil)

	resp := tr.do(httptest.NewRequest(http.MethodGet, "/api/v1/profiles/kid-1/ledger/balance", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestChildCanOnlyReadOwnLedger(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleChild, "kid-1")

	own := tr.do(authed(http.MethodGet, "/api/v1/profiles/kid-1/ledger/balance", token, ""))
	if own.Code != http.StatusOK {
		t.Fatalf("expected own balance 200 got %d", own.Code)
	}

	sibling := tr.do(authed(http.MethodGet, "/api/v1/profiles/kid-2/ledger/balance", token, ""))
	if sibling.Code != http.StatusForbidden {
		t.Fatalf("expected sibling balance 403 got %d", sibling.Code)
	}
	if len(tr.ledger.balances) != 1 || tr.ledger.balances[0] != "house-1/kid-1" {
		t.Fatalf("unexpected balance lookups %v", tr.ledger.balances)
	}
}

func TestChildCannotPayTasks(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleChild, "kid-1")

	req := authed(http.MethodPost, "/api/v1/profiles/kid-1/ledger/task-payments", token, `{"taskId":"task-1","amountCents":250}`)
	req.Header.Set("Idempotency-Key", "k1")
	resp := tr.do(req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if len(tr.ledger.payments) != 0 {
		t.Fatalf("expected no payment recorded")
	}
}

func TestLedgerPostsRequireIdempotencyKey(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleParent, "")

	resp := tr.do(authed(http.MethodPost, "/api/v1/profiles/kid-1/ledger/task-payments", token, `{"taskId":"task-1","amountCents":250}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(tr.ledger.payments) != 0 {
		t.Fatalf("handler must not run without idempotency key")
	}
}

func TestTaskPaymentReplaysWithSameKey(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleParent, "")

	var bodies []string
	for i := 0; i < 2; i++ {
		req := authed(http.MethodPost, "/api/v1/profiles/kid-1/ledger/task-payments", token, `{"taskId":"task-1","memo":" dishes ","amountCents":250}`)
		req.Header.Set("Idempotency-Key", "pay-1")
		resp := tr.do(req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d %s", i, resp.Code, resp.Body.String())
		}
		bodies = append(bodies, resp.Body.String())
	}

	if len(tr.ledger.payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(tr.ledger.payments))
	}
	got := tr.ledger.payments[0]
	if got.HouseholdID != "house-1" || got.ProfileID != "kid-1" || got.TaskID != "task-1" || got.Memo != "dishes" || got.AmountCents != 250 {
		t.Fatalf("unexpected payment input %+v", got)
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("expected replayed body, got %q vs %q", bodies[0], bodies[1])
	}
}

func TestLedgerRejectsUnknownFields(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleParent, "")

	req := authed(http.MethodPost, "/api/v1/profiles/kid-1/ledger/adjustments", token, `{"amountCents":-200,"bogus":true}`)
	req.Header.Set("Idempotency-Key", "adj-1")
	resp := tr.do(req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code got %s", code)
	}
}

func TestFinalizeWithdrawalSurfacesStateConflict(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleParent, "")

	req := authed(http.MethodPost, "/api/v1/profiles/kid-1/ledger/withdrawals/txn-4/finalize", token, `{"amountCents":500}`)
	req.Header.Set("Idempotency-Key", "fin-1")
	resp := tr.do(req)
	if code := errorCode(t, resp); code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict got %s (%d)", code, resp.Code)
	}
}

func TestChildTaskListIsScopedToOwnProfile(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleChild, "kid-1")

	resp := tr.do(authed(http.MethodGet, "/api/v1/tasks?assigneeId=kid-2&limit=10", token, ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(tr.tasks.lists) != 1 {
		t.Fatalf("expected one list call")
	}
	if params := tr.tasks.lists[0]; params.AssigneeID != "kid-1" || params.Limit != 10 || params.HouseholdID != "house-1" {
		t.Fatalf("unexpected list params %+v", params)
	}
}

func TestChildCannotCreateTasks(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleChild, "kid-1")

	req := authed(http.MethodPost, "/api/v1/tasks", token, `{"assigneeId":"kid-1","title":"Dishes","valueCents":100}`)
	req.Header.Set("Idempotency-Key", "task-1")
	resp := tr.do(req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestParentDeletesTask(t *testing.T) {
	tr := newTestRouter(t, nil)
	token := tr.token(t, enums.MemberRoleParent, "")

	resp := tr.do(authed(http.MethodDelete, "/api/v1/tasks/task-1", token, ""))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
}
