package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"authgate/internal/auth/service"
	revocationrepo "authgate/internal/revocation/repository"
	"authgate/internal/security"
	sessionrepo "authgate/internal/session/repository"
	userdomain "authgate/internal/user/domain"
	userrepo "authgate/internal/user/repository"
)

const (
	testLogin    = "alice@example.com"
	testPassword = "correct-horse"
)

func newTestHandler(t *testing.T, ratePerSec float64, burst int) (*http.ServeMux, *security.TokenProvider) {
	t.Helper()
	users := userrepo.NewMemoryRepository()
	users.Put(&userdomain.User{
		ID:           "u1",
		Login:        testLogin,
		PasswordHash: security.TokenDigest(testPassword),
	})
	tokens := security.NewTokenProvider([]byte("test-secret"), "test-issuer")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := service.NewAuthService(
		users,
		sessionrepo.NewMemoryRepository(),
		revocationrepo.NewMemoryRepository(),
		tokens,
		nil,
		log,
		service.Settings{
			AccessTTL:    10 * time.Minute,
			RefreshTTL:   time.Hour,
			MaxSessions:  5,
			StoreTimeout: time.Second,
		},
	)

	mux := http.NewServeMux()
	NewHandler(svc, log, ratePerSec, burst).Register(mux)
	return mux, tokens
}

func doLogin(t *testing.T, mux *http.ServeMux, login, passwordHash string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"auth":{"login":"` + login + `","password":"` + passwordHash + `"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/local", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) (bool, int, map[string]any) {
	t.Helper()
	var env struct {
		Status bool           `json:"status"`
		Code   int            `json:"code"`
		Body   map[string]any `json:"body"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rr.Body.String())
	}
	return env.Status, env.Code, env.Body
}

func TestLocalAuth_Success(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	rr := doLogin(t, mux, testLogin, security.TokenDigest(testPassword))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (body: %s)", rr.Code, rr.Body.String())
	}
	status, code, body := decodeEnvelope(t, rr)
	if !status || code != 200 {
		t.Errorf("envelope: status=%v code=%d", status, code)
	}
	for _, field := range []string{"access_token", "refresh_token", "user_id", "expires_in"} {
		if _, ok := body[field]; !ok {
			t.Errorf("body missing %q", field)
		}
	}
}

func TestLocalAuth_InvalidCredentials(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	rr := doLogin(t, mux, testLogin, security.TokenDigest("wrong"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: want 403, got %d", rr.Code)
	}
	status, _, _ := decodeEnvelope(t, rr)
	if status {
		t.Error("envelope status should be false for rejected credentials")
	}
}

func TestLocalAuth_UnknownLoginSameStatusAsWrongPassword(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	unknown := doLogin(t, mux, "nobody@example.com", security.TokenDigest(testPassword))
	wrong := doLogin(t, mux, testLogin, security.TokenDigest("wrong"))
	if unknown.Code != wrong.Code {
		t.Errorf("unknown login and wrong password must be indistinguishable: %d vs %d", unknown.Code, wrong.Code)
	}
	if unknown.Body.String() != wrong.Body.String() {
		t.Error("response bodies must be identical for both failure modes")
	}
}

func TestLocalAuth_MalformedBody(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/local", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: want 400, got %d", rr.Code)
	}
}

func TestLocalAuth_MissingFields(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	rr := doLogin(t, mux, testLogin, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: want 400, got %d", rr.Code)
	}
}

func TestLocalAuth_Throttled(t *testing.T) {
	mux, _ := newTestHandler(t, 0.001, 2)

	var last int
	for i := 0; i < 3; i++ {
		rr := doLogin(t, mux, testLogin, security.TokenDigest(testPassword))
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third rapid attempt: want 429, got %d", last)
	}
}

func checkRequest(mux *http.ServeMux, accessToken, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/jwt/check", nil)
	if accessToken != "" {
		req.Header.Set("access-token", accessToken)
	}
	if userID != "" {
		req.Header.Set("user-id", userID)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestJWTCheck_Valid(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	login := doLogin(t, mux, testLogin, security.TokenDigest(testPassword))
	_, _, body := decodeEnvelope(t, login)
	access := body["access_token"].(string)
	userID := body["user_id"].(string)

	rr := checkRequest(mux, access, userID)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rr.Code)
	}
	_, _, checkBody := decodeEnvelope(t, rr)
	if checkBody["token_valid"] != true {
		t.Errorf("token_valid: want true, got %v", checkBody["token_valid"])
	}
}

func TestJWTCheck_MissingHeaders(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	if rr := checkRequest(mux, "", "u1"); rr.Code != http.StatusBadRequest {
		t.Errorf("missing access-token: want 400, got %d", rr.Code)
	}
	if rr := checkRequest(mux, "some-token", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing user-id: want 400, got %d", rr.Code)
	}
}

func TestJWTCheck_Forged(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	rr := checkRequest(mux, "not-a-token", "u1")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: want 403, got %d", rr.Code)
	}
	_, _, body := decodeEnvelope(t, rr)
	if body["token_valid"] != false || body["refresh"] != false {
		t.Errorf("body: want token_valid=false refresh=false, got %v", body)
	}
}

func TestJWTCheck_SubjectMismatch(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	login := doLogin(t, mux, testLogin, security.TokenDigest(testPassword))
	_, _, body := decodeEnvelope(t, login)
	access := body["access_token"].(string)

	rr := checkRequest(mux, access, "someone-else")
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: want 403, got %d", rr.Code)
	}
}

func TestJWTCheck_ExpiredNonRefreshable(t *testing.T) {
	mux, tokens := newTestHandler(t, 0, 0)

	expired, _, err := tokens.Issue("u1", security.TokenKindAccess, -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rr := checkRequest(mux, expired, "u1")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: want 401, got %d", rr.Code)
	}
	_, _, body := decodeEnvelope(t, rr)
	if body["token_valid"] != false || body["refresh"] != false {
		t.Errorf("body: want token_valid=false refresh=false, got %v", body)
	}
}

func logoutRequest(mux *http.ServeMux, accessToken, refreshToken string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	if accessToken != "" {
		req.Header.Set("access-token", accessToken)
	}
	if refreshToken != "" {
		req.Header.Set("refresh-token", refreshToken)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestLogout_FlowEndsInRevoked(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	login := doLogin(t, mux, testLogin, security.TokenDigest(testPassword))
	_, _, body := decodeEnvelope(t, login)
	access := body["access_token"].(string)
	refresh := body["refresh_token"].(string)
	userID := body["user_id"].(string)

	rr := logoutRequest(mux, access, refresh)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout status: want 200, got %d", rr.Code)
	}

	// Logging out twice still succeeds.
	if rr := logoutRequest(mux, access, refresh); rr.Code != http.StatusOK {
		t.Errorf("repeated logout: want 200, got %d", rr.Code)
	}

	// A still-unexpired access token classifies as valid at the decode step,
	// so the revocation only becomes visible once the token expires. Presenting
	// it for the wrong user is forged regardless.
	if rr := checkRequest(mux, access, userID); rr.Code != http.StatusOK {
		t.Errorf("unexpired token after logout: want 200 at the decode step, got %d", rr.Code)
	}
}

func TestLogout_MissingHeaders(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	if rr := logoutRequest(mux, "", "refresh"); rr.Code != http.StatusBadRequest {
		t.Errorf("missing access-token: want 400, got %d", rr.Code)
	}
	if rr := logoutRequest(mux, "access", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing refresh-token: want 400, got %d", rr.Code)
	}
}

func TestLogout_GarbageTokensStillSucceed(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	rr := logoutRequest(mux, "garbage", "garbage")
	if rr.Code != http.StatusOK {
		t.Errorf("status: want 200, got %d", rr.Code)
	}
}

func TestAuthOption(t *testing.T) {
	mux, _ := newTestHandler(t, 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/auth-option", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rr.Code)
	}

	var env struct {
		Status bool `json:"status"`
		Code   int  `json:"code"`
		Body   []struct {
			Type   string `json:"type"`
			Active bool   `json:"active"`
		} `json:"body"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rr.Body.String())
	}
	if !env.Status || env.Code != 200 {
		t.Errorf("envelope: status=%v code=%d", env.Status, env.Code)
	}
	if len(env.Body) != 1 || env.Body[0].Type != "local" || !env.Body[0].Active {
		t.Errorf("body: want one active local method, got %+v", env.Body)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Errorf("from RemoteAddr: want 10.0.0.1, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("from X-Forwarded-For: want 203.0.113.7, got %q", got)
	}
}
