package linker

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/riftlink/riftlink/riot"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	Router  *gin.Engine
	Service *Service
	DB      *gorm.DB
	Riot    *fakeRiot
}

// fakeRiot stands in for the provider API. ProfileIcon is mutable so verify
// tests can move the icon between calls.
type fakeRiot struct {
	GameName    string
	TagLine     string
	PUUID       string
	SummonerID  string
	ProfileIcon int
	Tier        string
	Division    string
	NotFound    bool
}

func (f *fakeRiot) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.NotFound {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		path := r.URL.Path
		switch {
		case strings.HasPrefix(path, "/riot/account/v1/accounts/by-riot-id/"):
			json.NewEncoder(w).Encode(riot.Account{
				PUUID: f.PUUID, GameName: f.GameName, TagLine: f.TagLine,
			})
		case strings.HasPrefix(path, "/lol/summoner/v4/summoners/by-puuid/"),
			strings.HasPrefix(path, "/lol/summoner/v4/summoners/"):
			json.NewEncoder(w).Encode(riot.Summoner{
				ID: f.SummonerID, PUUID: f.PUUID, ProfileIconID: f.ProfileIcon,
			})
		case strings.HasPrefix(path, "/lol/league/v4/entries/by-summoner/"):
			entries := []riot.LeagueEntry{}
			if f.Tier != "" {
				entries = append(entries, riot.LeagueEntry{
					QueueType: "RANKED_SOLO_5x5", Tier: f.Tier, Rank: f.Division,
				})
			}
			json.NewEncoder(w).Encode(entries)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&riot.LinkedAccount{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// asUser injects the authenticated user id the way the auth middleware does.
func asUser(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", uid)
		c.Next()
	}
}

func newTestEnv(t *testing.T, uid string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	fake := &fakeRiot{
		GameName:    "Faker",
		TagLine:     "KR1",
		PUUID:       "puuid-faker",
		SummonerID:  "summoner-faker",
		ProfileIcon: 5,
		Tier:        "CHALLENGER",
		Division:    "I",
	}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client := riot.NewClient("test-key", 0, logrus.New())
	client.BaseURL = server.URL

	service := &Service{Db: db, Logger: logrus.New(), Riot: client}

	r := gin.New()
	r.POST("/consumer/link", asUser(uid), service.LinkAccount)
	r.POST("/consumer/verify", asUser(uid), service.VerifyAccount)
	r.GET("/consumer/accounts", asUser(uid), service.ListAccounts)
	r.DELETE("/consumer/accounts/:id", asUser(uid), service.UnlinkAccount)

	return &testEnv{Router: r, Service: service, DB: db, Riot: fake}
}
