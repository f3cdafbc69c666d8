package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/riftlink/riftlink/anchor"
	"github.com/riftlink/riftlink/dashboard"
	"github.com/riftlink/riftlink/gateway"
	"github.com/riftlink/riftlink/linker"
	"github.com/riftlink/riftlink/riot"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestEngine(t *testing.T) (*gin.Engine, *gateway.JWTAuth) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&riot.LinkedAccount{}, &anchor.Anchor{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	auth := &gateway.JWTAuth{Key: []byte("test-secret")}
	svc := services{
		auth:      auth,
		linker:    &linker.Service{Db: db, Logger: logrusLogger, Riot: riot.NewClient("", 0, logrusLogger)},
		anchor:    &anchor.Service{Db: db, Logger: logrusLogger, Network: "testnet3"},
		dashboard: &dashboard.Service{Db: db, Logger: logrusLogger},
	}
	return GetMainEngine(svc), auth
}

func TestHealthEndpoint(t *testing.T) {
	route, _ := newTestEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	route.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestTokenHandler(t *testing.T) {
	route, auth := newTestEngine(t)

	payload, _ := json.Marshal(tokenRequest{WalletAddress: "TsTestAddr"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/token", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	route.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := auth.VerifyJWT(resp.Token)
	if err != nil {
		t.Fatalf("issued token must verify: %v", err)
	}
	if claims.UserID != "TsTestAddr" {
		t.Errorf("expected wallet address in claims, got %q", claims.UserID)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	route, _ := newTestEngine(t)

	for _, path := range []string{"/consumer/accounts", "/dashboard/status"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		route.ServeHTTP(w, req)
		if w.Code != 401 {
			t.Errorf("%s: expected 401 without a token, got %d", path, w.Code)
		}
	}
}
