package anchor

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/riftlink/riftlink/riot"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeWallet struct {
	network       string
	address       string
	txid          string
	confirmations int64
	offline       bool

	sent [][]byte
}

func (f *fakeWallet) Connected(ctx context.Context) error {
	if f.offline {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeWallet) Network(ctx context.Context) (string, error) { return f.network, nil }
func (f *fakeWallet) Address(ctx context.Context) (string, error) { return f.address, nil }

func (f *fakeWallet) SendAnchor(ctx context.Context, data []byte) (string, error) {
	f.sent = append(f.sent, data)
	return f.txid, nil
}

func (f *fakeWallet) Confirmations(ctx context.Context, txid string) (int64, error) {
	return f.confirmations, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&riot.LinkedAccount{}, &Anchor{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedVerified(t *testing.T, db *gorm.DB, uid, gameName, summonerID string) {
	t.Helper()
	account := riot.LinkedAccount{
		UserID:     uid,
		GameName:   gameName,
		TagLine:    "NA1",
		SummonerID: summonerID,
		PUUID:      "puuid-" + summonerID,
		Region:     "na1",
		Verified:   true,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func newTestService(t *testing.T, wallet Wallet) (*Service, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service := &Service{
		Db:          newTestDB(t),
		Logger:      logrus.New(),
		Wallet:      wallet,
		Network:     "testnet3",
		ExplorerURL: "https://testnet.dcrdata.org/tx",
	}
	r := gin.New()
	inject := func(c *gin.Context) { c.Set("user_id", "user-1"); c.Next() }
	r.POST("/consumer/anchor", inject, service.CreateAnchor)
	r.GET("/consumer/anchor/:id", inject, service.GetAnchor)
	r.GET("/consumer/anchors", inject, service.ListAnchors)
	return service, r
}

func TestPayload_DigestDeterministic(t *testing.T) {
	tier := "GOLD"
	division := "II"
	a := riot.LinkedAccount{GameName: "Alpha", TagLine: "NA1", Region: "na1", RankTier: &tier, RankDivision: &division}
	b := riot.LinkedAccount{GameName: "Beta", TagLine: "EUW", Region: "euw1"}

	at := time.Unix(1700000000, 0)
	first, err := BuildPayload([]riot.LinkedAccount{a, b}, "addr", at).DigestHex()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	second, err := BuildPayload([]riot.LinkedAccount{b, a}, "addr", at).DigestHex()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if first != second {
		t.Errorf("digest must not depend on input order: %s != %s", first, second)
	}

	later, _ := BuildPayload([]riot.LinkedAccount{a, b}, "addr", at.Add(time.Second)).DigestHex()
	if later == first {
		t.Errorf("digest must commit to the timestamp")
	}
}

func TestService_CreateAnchor(t *testing.T) {
	wallet := &fakeWallet{network: "testnet3", address: "TsTestAddr", txid: "deadbeef"}
	service, router := newTestService(t, wallet)
	seedVerified(t, service.Db, "user-1", "Alpha", "sum-1")
	seedVerified(t, service.Db, "user-1", "Beta", "sum-2")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/consumer/anchor", bytes.NewBufferString("{}"))
	router.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp AnchorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Txid != "deadbeef" || resp.AnchorID == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.ExplorerURL != "https://testnet.dcrdata.org/tx/deadbeef" {
		t.Errorf("unexpected explorer url: %s", resp.ExplorerURL)
	}

	if len(wallet.sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(wallet.sent))
	}
	if hex.EncodeToString(wallet.sent[0]) != resp.Digest {
		t.Errorf("on-chain bytes must equal the reported digest")
	}

	row, err := AnchorForUser(resp.AnchorID, "user-1", service.Db)
	if err != nil {
		t.Fatalf("fetch anchor row: %v", err)
	}
	if row.Status != StatusSubmitted || row.AccountCount != 2 {
		t.Errorf("unexpected row: %+v", row)
	}
}

func TestService_CreateAnchor_NoVerifiedAccounts(t *testing.T) {
	wallet := &fakeWallet{network: "testnet3", address: "TsTestAddr", txid: "deadbeef"}
	_, router := newTestService(t, wallet)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/consumer/anchor", bytes.NewBufferString("{}"))
	router.ServeHTTP(w, req)
	if w.Code != 412 {
		t.Errorf("expected 412, got %d: %s", w.Code, w.Body.String())
	}
	if len(wallet.sent) != 0 {
		t.Errorf("wallet must not be touched without verified accounts")
	}
}

func TestService_CreateAnchor_NoWallet(t *testing.T) {
	service, router := newTestService(t, nil)
	seedVerified(t, service.Db, "user-1", "Alpha", "sum-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/consumer/anchor", bytes.NewBufferString("{}"))
	router.ServeHTTP(w, req)
	if w.Code != 412 {
		t.Errorf("expected 412, got %d: %s", w.Code, w.Body.String())
	}
}

func TestService_CreateAnchor_NetworkMismatch(t *testing.T) {
	wallet := &fakeWallet{network: "mainnet", address: "DsAddr", txid: "deadbeef"}
	service, router := newTestService(t, wallet)
	seedVerified(t, service.Db, "user-1", "Alpha", "sum-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/consumer/anchor", bytes.NewBufferString("{}"))
	router.ServeHTTP(w, req)
	if w.Code != 409 {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if len(wallet.sent) != 0 {
		t.Errorf("must not broadcast on the wrong network")
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != "network_mismatch" {
		t.Errorf("expected network_mismatch, got %q", payload.Code)
	}
}

func TestService_GetAnchor_WrongOwner(t *testing.T) {
	wallet := &fakeWallet{network: "testnet3", address: "TsTestAddr", txid: "deadbeef"}
	service, router := newTestService(t, wallet)

	row := Anchor{UserID: "someone-else", Txid: "feed", Digest: "00", Network: "testnet3"}
	if err := row.Create(service.Db); err != nil {
		t.Fatalf("seed anchor: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/consumer/anchor/"+row.ID, nil)
	router.ServeHTTP(w, req)
	if w.Code != 404 {
		t.Errorf("foreign anchors must look missing, got %d", w.Code)
	}
}

func TestWatcher_StatusTransitions(t *testing.T) {
	wallet := &fakeWallet{network: "testnet3", address: "TsTestAddr", txid: "deadbeef"}
	db := newTestDB(t)
	watcher := NewWatcher(db, wallet, 2, time.Hour, logrus.New())

	row := Anchor{UserID: "user-1", Txid: "deadbeef", Digest: "00", Network: "testnet3"}
	if err := row.Create(db); err != nil {
		t.Fatalf("seed anchor: %v", err)
	}
	watcher.Track(row.ID, row.Txid)
	updates, unsub := watcher.Subscribe(row.ID)
	defer unsub()

	check := func(confirmations int64, want string) {
		t.Helper()
		wallet.confirmations = confirmations
		watcher.pollOnce(context.Background())
		select {
		case update := <-updates:
			if update.Status != want {
				t.Errorf("confs=%d: expected %s, got %s", confirmations, want, update.Status)
			}
		default:
			t.Fatalf("confs=%d: no update broadcast", confirmations)
		}
		stored, err := AnchorForUser(row.ID, "user-1", db)
		if err != nil {
			t.Fatalf("fetch row: %v", err)
		}
		if stored.Status != want || stored.Confirmations != confirmations {
			t.Errorf("confs=%d: stored %s/%d", confirmations, stored.Status, stored.Confirmations)
		}
	}

	check(0, StatusSubmitted)
	check(1, StatusConfirming)
	check(2, StatusConfirmed)

	// Confirmed anchors leave the tracked set.
	wallet.confirmations = 3
	watcher.pollOnce(context.Background())
	select {
	case <-updates:
		t.Errorf("confirmed anchors must not keep broadcasting")
	default:
	}
}

func TestWatcher_AdoptsPendingOnStart(t *testing.T) {
	wallet := &fakeWallet{confirmations: 5}
	db := newTestDB(t)

	row := Anchor{UserID: "user-1", Txid: "feed", Digest: "00", Network: "testnet3"}
	if err := row.Create(db); err != nil {
		t.Fatalf("seed anchor: %v", err)
	}

	watcher := NewWatcher(db, wallet, 2, time.Hour, logrus.New())
	watcher.adoptPending()
	watcher.pollOnce(context.Background())

	stored, err := AnchorForUser(row.ID, "user-1", db)
	if err != nil {
		t.Fatalf("fetch row: %v", err)
	}
	if stored.Status != StatusConfirmed {
		t.Errorf("restart must pick up pending rows, got %s", stored.Status)
	}
}
