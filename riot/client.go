package riot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/riftlink/riftlink/apperr"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

const defaultTimeout = 10 * time.Second

// Client talks to the Riot games API. All lookups are GETs authenticated with
// the X-Riot-Token header; none of them are retried.
type Client struct {
	apiKey string
	http   *http.Client
	Logger *logrus.Logger
	// BaseURL overrides the riotgames.com hosts when set. Used against the
	// QA simulator and in tests; production leaves it empty.
	BaseURL string
}

func (c *Client) clusterHost(region string) string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return "https://" + RoutingCluster(region) + apiHostSuffix
}

func (c *Client) regionHost(region string) string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return "https://" + region + apiHostSuffix
}

// NewClient builds a Riot client. timeout <= 0 falls back to the default.
func NewClient(apiKey string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log
	}
	initRiotMetrics()
	return &Client{
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Configured reports whether an API key was supplied. Callers must check this
// before issuing lookups; an unconfigured client fails every call.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) get(ctx context.Context, endpoint, url string, out any) error {
	if !c.Configured() {
		return apperr.Wrap(apperr.ErrConfiguration, apperr.ErrConfiguration, "riot api key not configured")
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrInternal, "building riot request")
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		c.Logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"error":    err.Error(),
		}).Error("error in establishing connection to riot")
		recordRiotMetrics(endpoint, 0, err, time.Since(start))
		return apperr.Wrap(err, apperr.ErrUpstream, "riot api unreachable")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		recordRiotMetrics(endpoint, res.StatusCode, err, time.Since(start))
		return apperr.Wrap(err, apperr.ErrUpstream, "reading riot response")
	}
	recordRiotMetrics(endpoint, res.StatusCode, nil, time.Since(start))

	c.Logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   res.StatusCode,
	}).Debug("riot response")

	switch {
	case res.StatusCode == http.StatusNotFound:
		return apperr.Wrap(apperr.ErrNotFound, apperr.ErrNotFound, "identity not found")
	case res.StatusCode < 200 || res.StatusCode > 299:
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		c.Logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   res.StatusCode,
			"body":     msg,
		}).Error("riot api error")
		return apperr.Wrap(apperr.ErrUpstream, apperr.ErrUpstream, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(err, apperr.ErrUpstream, "decoding riot response")
	}
	return nil
}

// AccountByRiotID resolves (gameName, tagLine) on the region's routing cluster.
func (c *Client) AccountByRiotID(ctx context.Context, region, gameName, tagLine string) (Account, error) {
	var account Account
	err := c.get(ctx, "account_by_riot_id", c.clusterHost(region)+accountByRiotIDPath(gameName, tagLine), &account)
	return account, err
}

// SummonerByPUUID fetches the region-scoped summoner record for a puuid.
func (c *Client) SummonerByPUUID(ctx context.Context, region, puuid string) (Summoner, error) {
	var summoner Summoner
	err := c.get(ctx, "summoner_by_puuid", c.regionHost(region)+summonerByPUUIDPath(puuid), &summoner)
	return summoner, err
}

// SummonerByID fetches the current summoner record, including the profile
// icon the verify flow compares against.
func (c *Client) SummonerByID(ctx context.Context, region, summonerID string) (Summoner, error) {
	var summoner Summoner
	err := c.get(ctx, "summoner_by_id", c.regionHost(region)+summonerByIDPath(summonerID), &summoner)
	return summoner, err
}

// LeagueEntries fetches the ranked queue entries for a summoner.
func (c *Client) LeagueEntries(ctx context.Context, region, summonerID string) ([]LeagueEntry, error) {
	var entries []LeagueEntry
	err := c.get(ctx, "league_entries", c.regionHost(region)+leagueEntriesPath(summonerID), &entries)
	return entries, err
}
