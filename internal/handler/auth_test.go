package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/handler/dto"
	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/service"
	"github.com/authgate/authgate/internal/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type authFixture struct {
	router http.Handler
	store  *testutil.MemoryUserStore
	tokens *auth.TokenManager
	events *recordingPublisher
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) PublishAsync(event audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) list() []audit.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]audit.Event(nil), p.events...)
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := testutil.NewMemoryUserStore()
	tokens, err := auth.NewTokenManager([]byte(testSecret), "authgate-test", 15*time.Minute)
	require.NoError(t, err)
	svc, err := service.NewAuthService(store, auth.NewBcryptHasher(bcrypt.MinCost), tokens, nil)
	require.NoError(t, err)

	events := &recordingPublisher{}
	h := NewAuthHandler(svc, events, logger)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.MaxBodySize(1 << 10))
	r.Post("/signup", h.Signup)
	r.Post("/token", h.Token)
	r.With(middleware.Auth(middleware.AuthConfig{Logger: logger, Authenticator: svc})).Get("/dashboard", h.Dashboard)

	return &authFixture{router: r, store: store, tokens: tokens, events: events}
}

func (f *authFixture) do(t *testing.T, method, path, contentType, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *authFixture) signup(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(dto.SignupRequest{Username: username, Password: password})
	require.NoError(t, err)
	return f.do(t, http.MethodPost, "/signup", "application/json", string(body), nil)
}

func (f *authFixture) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(dto.TokenRequest{Username: username, Password: password})
	require.NoError(t, err)
	return f.do(t, http.MethodPost, "/token", "application/json", string(body), nil)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestAuthHandler_FullFlow(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	rec := f.signup(t, "alice", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"User created successfully!"}`, rec.Body.String())

	rec = f.login(t, "alice", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var token dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, int64(900), token.ExpiresIn)
	assert.NotEmpty(t, token.AccessToken)

	rec = f.do(t, http.MethodGet, "/dashboard", "", "", http.Header{"Authorization": {"Bearer " + token.AccessToken}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Welcome to the dashboard!","username":"alice"}`, rec.Body.String())
}

func TestAuthHandler_Signup_Duplicate(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	require.Equal(t, http.StatusOK, f.signup(t, "alice", "one").Code)
	rec := f.signup(t, "alice", "two")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "USERNAME_TAKEN", decodeError(t, rec).Code)
}

func TestAuthHandler_Signup_InvalidInput(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	tests := []struct {
		name       string
		body       string
		wantCode   string
		wantDetail string
	}{
		{"missing username", `{"password":"pw"}`, "INVALID_INPUT", "username is required"},
		{"missing password", `{"username":"bob"}`, "INVALID_INPUT", "password is required"},
		{"long password", `{"username":"bob","password":"` + strings.Repeat("x", 73) + `"}`, "INVALID_INPUT", "password exceeds maximum length"},
		{"malformed json", `{"username":`, "INVALID_REQUEST", "Invalid request body"},
		{"wrong types", `{"username":1,"password":2}`, "INVALID_REQUEST", "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/signup", "application/json", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantDetail, resp.Detail)
		})
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestAuthHandler_Signup_BodyTooLarge(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	body := `{"username":"bob","password":"` + strings.Repeat("x", 2048) + `"}`
	rec := f.do(t, http.MethodPost, "/signup", "application/json", body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuthHandler_Signup_StorageUnavailable(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	f.store.SetErr(errors.New(`ERROR: relation "users" does not exist (SQLSTATE 42P01)`))

	rec := f.signup(t, "alice", "pw")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, rec).Code)
	assert.NotContains(t, rec.Body.String(), "relation")
	assert.NotContains(t, rec.Body.String(), "SQLSTATE")
}

func TestAuthHandler_Token_WrongCredentials(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	require.Equal(t, http.StatusOK, f.signup(t, "alice", "s3cret").Code)

	wrong := f.login(t, "alice", "nope")
	unknown := f.login(t, "mallory", "nope")

	for _, rec := range []*httptest.ResponseRecorder{wrong, unknown} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, rec).Code)
	}
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestAuthHandler_Token_FormEncoded(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	require.Equal(t, http.StatusOK, f.signup(t, "alice", "s3cret").Code)

	form := url.Values{"username": {"alice"}, "password": {"s3cret"}, "grant_type": {"password"}}
	rec := f.do(t, http.MethodPost, "/token", "application/x-www-form-urlencoded", form.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var token dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	claims, err := f.tokens.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username())

	form.Set("grant_type", "client_credentials")
	rec = f.do(t, http.MethodPost, "/token", "application/x-www-form-urlencoded", form.Encode(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_GRANT_TYPE", decodeError(t, rec).Code)
}

func TestAuthHandler_Token_MalformedBody(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	rec := f.do(t, http.MethodPost, "/token", "application/json", "not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Code)
}

func TestAuthHandler_Dashboard_Rejections(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)
	require.Equal(t, http.StatusOK, f.signup(t, "alice", "s3cret").Code)

	past := time.Now().Add(-time.Hour)
	stale, err := auth.NewTokenManager([]byte(testSecret), "authgate-test", time.Minute, auth.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	expired, err := stale.Issue("alice")
	require.NoError(t, err)

	fresh, err := f.tokens.Issue("alice")
	require.NoError(t, err)
	parts := strings.Split(fresh.AccessToken, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	bodies := map[string]bool{}
	for name, header := range map[string]string{
		"missing":  "",
		"expired":  "Bearer " + expired.AccessToken,
		"tampered": "Bearer " + tampered,
		"garbage":  "Bearer abc",
	} {
		var h http.Header
		if header != "" {
			h = http.Header{"Authorization": {header}}
		}
		rec := f.do(t, http.MethodGet, "/dashboard", "", "", h)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"), name)
		bodies[rec.Body.String()] = true
	}
	assert.Len(t, bodies, 1, "all token failures must look the same")
}

func TestAuthHandler_Dashboard_WithoutMiddleware(t *testing.T) {
	t.Parallel()
	h := NewAuthHandler(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_PublishesAuditEvents(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	require.Equal(t, http.StatusOK, f.signup(t, "erin", "pw").Code)
	require.Equal(t, http.StatusBadRequest, f.signup(t, "erin", "pw").Code)
	rec := f.do(t, http.MethodPost, "/token", "application/x-www-form-urlencoded", "username=erin&password=wrong", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodPost, "/token", "application/x-www-form-urlencoded", "username=erin&password=pw", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	events := f.events.list()
	require.Len(t, events, 4)

	assert.Equal(t, audit.EventSignup, events[0].Type)
	assert.Equal(t, metrics.StatusSuccess, events[0].Outcome)
	assert.Equal(t, "erin", events[0].Username)

	assert.Equal(t, metrics.StatusUsernameTaken, events[1].Outcome)
	assert.Empty(t, events[1].Username)

	assert.Equal(t, audit.EventLogin, events[2].Type)
	assert.Equal(t, metrics.StatusInvalidCredentials, events[2].Outcome)
	assert.Empty(t, events[2].Username)

	assert.Equal(t, metrics.StatusSuccess, events[3].Outcome)
	assert.NotEmpty(t, events[3].RequestID)
	for _, e := range events {
		assert.NoError(t, audit.ValidateEvent(e))
	}
}

func TestAuthHandler_AuditEventsUseStoredUsername(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	padded := "alice" + strings.Repeat(" ", 70)
	require.Equal(t, http.StatusOK, f.signup(t, padded, "pw").Code)
	require.Equal(t, http.StatusOK, f.login(t, "  alice\t", "pw").Code)

	events := f.events.list()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, metrics.StatusSuccess, e.Outcome)
		assert.Equal(t, "alice", e.Username)
		assert.NoError(t, audit.ValidateEvent(e))
	}
}

func TestAuthHandler_NoAuditEventForMalformedBody(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t)

	rec := f.do(t, http.MethodPost, "/signup", "application/json", "{", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.events.list())
}
