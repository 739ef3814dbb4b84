package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"

	"github.com/4xmen/pairchat/internal/auth"
	"github.com/4xmen/pairchat/internal/chat"
	"github.com/4xmen/pairchat/internal/db"
	"github.com/4xmen/pairchat/internal/handlers"
	"github.com/4xmen/pairchat/internal/storage"
)

type testServer struct {
	router  *gin.Engine
	authSvc *auth.Service
}

func newTestServer(t *testing.T, limits RateLimits) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "server.db"))
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	blobs, err := storage.NewLocalStorage(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	authSvc := auth.New(database.GetConn(), "server-test-secret")
	chatSvc := chat.New(database.GetConn(), blobs)

	router := New(Options{
		CORSOrigins: "https://chat.example.com",
		RateLimits:  limits,
		Logger:      zerolog.Nop(),
	}, handlers.NewAuthHandler(authSvc), handlers.NewChatHandler(chatSvc))

	return &testServer{router: router, authSvc: authSvc}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T, username string) string {
	t.Helper()
	id, err := s.authSvc.Register(context.Background(), username, "password123", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := s.authSvc.GenerateToken(id, username)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, DefaultRateLimits())

	w := s.do(httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}

	w = s.do(httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatal("metrics output does not include http_requests_total")
	}
}

func TestTrailingSlashIsOptional(t *testing.T) {
	s := newTestServer(t, DefaultRateLimits())
	token := s.token(t, "alice")

	for _, path := range []string{"/api/chat/rooms", "/api/chat/rooms/"} {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := s.do(req)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, w.Code)
		}
	}
}

func TestChatRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, DefaultRateLimits())

	routes := []struct{ method, path string }{
		{"GET", "/api/chat/rooms/"},
		{"POST", "/api/chat/rooms/"},
		{"GET", "/api/chat/rooms/1/partner/"},
		{"GET", "/api/chat/rooms/1/messages/"},
		{"POST", "/api/chat/rooms/1/messages/send/"},
		{"POST", "/api/chat/rooms/1/messages/read/"},
		{"POST", "/api/chat/rooms/1/leave/"},
		{"GET", "/api/chat/files/1/download/"},
	}
	for _, r := range routes {
		w := s.do(httptest.NewRequest(r.method, r.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", r.method, r.path, w.Code)
		}
	}
}

func TestRegisterRateLimit(t *testing.T) {
	limits := DefaultRateLimits()
	limits.Register = limiter.Rate{Period: time.Minute, Limit: 1}
	s := newTestServer(t, limits)

	register := func(username string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"username": username, "password": "password123"})
		req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return s.do(req)
	}

	if w := register("first"); w.Code != http.StatusCreated {
		t.Fatalf("first register status = %d (%s)", w.Code, w.Body.String())
	}
	w := register("second")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second register status = %d, want 429", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "1" || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected rate limit headers: %v", w.Header())
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, DefaultRateLimits())

	w := s.do(httptest.NewRequest("OPTIONS", "/api/chat/rooms/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example.com" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, DefaultRateLimits())

	w := s.do(httptest.NewRequest("GET", "/api/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp["error"] != "not found" {
		t.Fatalf("unexpected body %q (%v)", w.Body.String(), err)
	}
}

func TestPanicRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(serverErrorLogger(zerolog.Nop()), panicRecovery(zerolog.Nop()))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal server error") {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second, zerolog.Nop())
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
