package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"minimail/internal/repository"
	"minimail/internal/service/auth"
	"minimail/internal/service/mail"
	"minimail/pkg/mq"
	"minimail/pkg/trace"
	"minimail/pkg/util"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	issuer  *util.SessionIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := util.NewSessionIssuer("router-test-secret", time.Hour)
	require.NoError(t, err)
	log := zap.NewNop()
	pub := mq.NopPublisher{}

	authService := auth.NewService(repository.NewUserRepository(), issuer, nil, pub, log)
	mailService := mail.NewService(repository.NewMailRepository(), pub, log)
	router := NewRouter(authService, mailService, log)

	return &testServer{t: t, handler: router.Handler([]string{"*"}), issuer: issuer}
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" &&
		bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")) {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *testServer) signupAndLogin(email, password string) string {
	s.t.Helper()
	rec, _ := s.do(http.MethodPost, "/api/signup", "", gin.H{
		"email": email, "password": password, "confirmPassword": password,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code)

	rec, body := s.do(http.MethodPost, "/api/login", "", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code)
	token, _ := body["token"].(string)
	require.NotEmpty(s.t, token)
	return token
}

func mailList(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["mails"].([]any)
	require.True(t, ok, "mails must be an array")
	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		out = append(out, m.(map[string]any))
	}
	return out
}

func TestMailFlow(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(http.MethodPost, "/api/signup", "", gin.H{
		"email": "a@x.com", "password": "secret1", "confirmPassword": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Signup successful.", body["message"])

	rec, body = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful.", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.NotEmpty(t, user["id"])
	assert.NotContains(t, user, "password")
	tokenA := body["token"].(string)

	claims, err := s.issuer.Verify(tokenA)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)

	rec, body = s.do(http.MethodPost, "/api/mail/send", tokenA, gin.H{
		"to": "b@x.com", "subject": "Hi", "body": "<p>Hello</p>",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Mail sent successfully.", body["message"])
	sent := body["mail"].(map[string]any)
	mailID := sent["id"].(string)
	assert.Equal(t, "a@x.com", sent["from"])
	assert.Equal(t, "b@x.com", sent["to"])
	assert.Equal(t, false, sent["isRead"])
	assert.NotEmpty(t, sent["timestamp"])

	tokenB := s.signupAndLogin("b@x.com", "secret2")

	rec, body = s.do(http.MethodGet, "/api/mail/inbox", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := mailList(t, body)
	require.Len(t, inbox, 1)
	assert.Equal(t, mailID, inbox[0]["id"])
	assert.Equal(t, false, inbox[0]["isRead"])

	rec, body = s.do(http.MethodGet, "/api/mail/sentbox", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mailList(t, body), 1)

	// the sender viewing it does not mark it read
	rec, body = s.do(http.MethodGet, "/api/mail/"+mailID, tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["mail"].(map[string]any)["isRead"])

	rec, body = s.do(http.MethodGet, "/api/mail/"+mailID, tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["mail"].(map[string]any)["isRead"])

	rec, body = s.do(http.MethodGet, "/api/mail/inbox", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, mailList(t, body)[0]["isRead"])

	rec, body = s.do(http.MethodDelete, "/api/mail/"+mailID, tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mail deleted successfully.", body["message"])

	rec, body = s.do(http.MethodGet, "/api/mail/inbox", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, mailList(t, body))

	rec, body = s.do(http.MethodGet, "/api/mail/sentbox", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, mailList(t, body))

	rec, body = s.do(http.MethodGet, "/api/mail/"+mailID, tokenA, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Mail not found.", body["message"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/mail/send"},
		{http.MethodGet, "/api/mail/inbox"},
		{http.MethodGet, "/api/mail/sentbox"},
		{http.MethodGet, "/api/mail/some-id"},
		{http.MethodPut, "/api/mail/some-id/read"},
		{http.MethodDelete, "/api/mail/some-id"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			rec, body := s.do(r.method, r.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Unauthorized. Token required.", body["message"])

			rec, body = s.do(r.method, r.path, "not-a-jwt", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Invalid or expired token.", body["message"])
		})
	}
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"all invalid", gin.H{"email": "nope", "password": "123", "confirmPassword": "x"},
			"A valid email is required. Password must be at least 6 characters. Passwords do not match."},
		{"mismatch", gin.H{"email": "a@x.com", "password": "secret1", "confirmPassword": "secret2"},
			"Passwords do not match."},
		{"trimmed short password", gin.H{"email": "a@x.com", "password": "  12345 ", "confirmPassword": "12345"},
			"Password must be at least 6 characters."},
		{"multi-byte short password", gin.H{"email": "a@x.com", "password": "ééé", "confirmPassword": "ééé"},
			"Password must be at least 6 characters."},
		{"display name address", gin.H{"email": "A <a@x.com>", "password": "secret1", "confirmPassword": "secret1"},
			"A valid email is required."},
		{"malformed json", "{", "Invalid request body."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(http.MethodPost, "/api/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, body["message"])
		})
	}
}

// 长度按字符计算
func TestSignupMultiBytePassword(t *testing.T) {
	s := newTestServer(t)
	assert.NotEmpty(t, s.signupAndLogin("a@x.com", "éééééé"))
}

func TestSignupDuplicate(t *testing.T) {
	s := newTestServer(t)
	s.signupAndLogin("a@x.com", "secret1")

	rec, body := s.do(http.MethodPost, "/api/signup", "", gin.H{
		"email": " A@X.com ", "password": "another", "confirmPassword": "another",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email is already registered.", body["message"])
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	s.signupAndLogin("a@x.com", "secret1")

	rec, body := s.do(http.MethodPost, "/api/login", "", gin.H{"email": "a@x.com", "password": "wrong12"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password.", body["message"])

	rec, body = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "ghost@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password.", body["message"])

	rec, body = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "bad", "password": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A valid email is required. Password is required.", body["message"])
}

func TestSendValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.signupAndLogin("a@x.com", "secret1")

	for _, b := range []gin.H{
		{"to": "", "subject": "Hi", "body": "x"},
		{"to": "b@x.com", "subject": "  ", "body": "x"},
		{"to": "b@x.com", "subject": "Hi", "body": "<p> </p>"},
		{"to": "b@x.com", "subject": "Hi"},
	} {
		rec, body := s.do(http.MethodPost, "/api/mail/send", token, b)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "To, subject, and body are required.", body["message"])
	}
}

func TestMailOwnership(t *testing.T) {
	s := newTestServer(t)
	tokenA := s.signupAndLogin("a@x.com", "secret1")
	tokenEve := s.signupAndLogin("eve@x.com", "secret1")

	rec, body := s.do(http.MethodPost, "/api/mail/send", tokenA, gin.H{
		"to": "B@X.com", "subject": "Hi", "body": "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	mailID := body["mail"].(map[string]any)["id"].(string)

	rec, body = s.do(http.MethodGet, "/api/mail/"+mailID, tokenEve, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Mail not found.", body["message"])

	rec, _ = s.do(http.MethodPut, "/api/mail/"+mailID+"/read", tokenEve, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = s.do(http.MethodDelete, "/api/mail/"+mailID, tokenEve, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Mail not found or cannot be deleted.", body["message"])

	// recipient address was normalized, so the lower-case account sees it
	tokenB := s.signupAndLogin("b@x.com", "secret1")
	rec, body = s.do(http.MethodPut, "/api/mail/"+mailID+"/read", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["mail"].(map[string]any)["isRead"])

	// sender may delete too
	rec, _ = s.do(http.MethodDelete, "/api/mail/"+mailID, tokenA, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodDelete, "/api/mail/"+mailID, tokenA, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownMailboxIsEmptyArray(t *testing.T) {
	s := newTestServer(t)
	token := s.signupAndLogin("a@x.com", "secret1")

	rec, _ := s.do(http.MethodGet, "/api/mail/inbox", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mails":[]}`, rec.Body.String())
}

func TestExpiredToken(t *testing.T) {
	s := newTestServer(t)
	s.signupAndLogin("a@x.com", "secret1")

	other, err := util.NewSessionIssuer("some-other-secret", time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue("id", "a@x.com")
	require.NoError(t, err)

	rec, body := s.do(http.MethodGet, "/api/mail/inbox", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token.", body["message"])
}

func TestHealthAndTrace(t *testing.T) {
	s := newTestServer(t)

	for _, p := range []string{"/healthz", "/health"} {
		rec, body := s.do(http.MethodGet, p, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
	}

	rec, body := s.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
	assert.EqualValues(t, 0, body["mails"])

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "trace-123")
	out := httptest.NewRecorder()
	s.handler.ServeHTTP(out, req)
	assert.Equal(t, "trace-123", out.Header().Get(trace.HeaderName))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	out = httptest.NewRecorder()
	s.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	assert.Contains(t, out.Body.String(), "http_request_duration_seconds")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/mail/inbox", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
}

func TestReadinessChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer, err := util.NewSessionIssuer("x", time.Hour)
	require.NoError(t, err)
	log := zap.NewNop()
	authService := auth.NewService(repository.NewUserRepository(), issuer, nil, nil, log)
	mailService := mail.NewService(repository.NewMailRepository(), nil, log)

	down := ReadinessCheck{Name: "mq", Check: func(context.Context) error { return errors.New("connection closed") }}
	up := ReadinessCheck{Name: "redis", Check: func(context.Context) error { return nil }}

	rec := httptest.NewRecorder()
	NewRouter(authService, mailService, log, up, down).Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "mq_not_ready")

	rec = httptest.NewRecorder()
	NewRouter(authService, mailService, log, up).Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
