package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bookshop/internal/config"
	"bookshop/internal/http/handlers"
	applog "bookshop/internal/log"
	"bookshop/internal/mail"
	"bookshop/internal/repos"
)

const (
	adminEmail  = "admin@bookshop.test"
	readerEmail = "reader@bookshop.test"
)

type testApp struct {
	app    *fiber.App
	db     *sqlx.DB
	cfg    config.Config
	outbox *mail.Outbox
}

func newTestApp(t *testing.T, tweak ...func(*config.Config)) *testApp {
	t.Helper()
	cfg := config.Test()
	cfg.MediaDir = t.TempDir()
	for _, f := range tweak {
		f(&cfg)
	}
	db, err := repos.OpenDB(cfg.DBDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	outbox := &mail.Outbox{}
	deps := handlers.NewDeps(db, cfg, handlers.External{Mail: outbox})
	return &testApp{app: handlers.NewApp(deps, cfg), db: db, cfg: cfg, outbox: outbox}
}

// do sends a JSON request; body may be nil, a string (sent raw) or any value to marshal.
func (ta *testApp) do(t *testing.T, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	case []byte:
		r = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), "body=%s", raw)
	return v
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (ta *testApp) login(t *testing.T, email, password string) tokenPair {
	t.Helper()
	resp, raw := ta.do(t, "POST", "/api/accounts/users/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	out := decode[struct {
		Tokens tokenPair `json:"tokens"`
	}](t, raw)
	require.NotEmpty(t, out.Tokens.Access)
	return out.Tokens
}

func (ta *testApp) staffToken(t *testing.T) string {
	return ta.login(t, adminEmail, repos.SeedPassword).Access
}

func (ta *testApp) readerToken(t *testing.T) string {
	return ta.login(t, readerEmail, repos.SeedPassword).Access
}

// register creates a customer account and returns its access token.
func (ta *testApp) register(t *testing.T, email string) string {
	t.Helper()
	resp, raw := ta.do(t, "POST", "/api/accounts/users/register", map[string]any{
		"email": email, "password": "S3cure!pass", "confirm_password": "S3cure!pass",
		"first_name": "Test", "last_name": "User",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	return ta.login(t, email, "S3cure!pass").Access
}

func (ta *testApp) bookIDByISBN(t *testing.T, isbn string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, ta.db.Get(&id, `SELECT id FROM books WHERE isbn = ?`, isbn))
	return id
}

type errorBody struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

// observeLogs routes the request log helpers into an in-memory core for the test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := applog.SetLogger(zap.New(core))
	t.Cleanup(func() { applog.SetLogger(prev) })
	return logs
}

// assertMoney compares decimal amounts regardless of trailing zeros.
func assertMoney(t *testing.T, want string, got any) {
	t.Helper()
	s, ok := got.(string)
	require.True(t, ok, "amount %v is not a string", got)
	assert.True(t, decimal.RequireFromString(want).Equal(decimal.RequireFromString(s)), "want %s, got %s", want, s)
}
