package riot

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ResolveAccount translates a riot id into a normalized account record.
// It issues three sequential lookups: identity on the routing cluster,
// summoner on the platform region, then ranked entries. The rank lookup is
// best effort: any failure there leaves Rank with Reason RankUnavailable and
// never fails the resolution.
func (c *Client) ResolveAccount(ctx context.Context, region, gameName, tagLine string) (ResolvedAccount, error) {
	var resolved ResolvedAccount

	account, err := c.AccountByRiotID(ctx, region, gameName, tagLine)
	if err != nil {
		return resolved, err
	}

	summoner, err := c.SummonerByPUUID(ctx, region, account.PUUID)
	if err != nil {
		return resolved, err
	}

	// Older summoner records still carry a display name; newer ones leave it
	// empty and the riot id is the canonical name.
	summonerName := summoner.Name
	if summonerName == "" {
		summonerName = account.GameName
	}

	resolved = ResolvedAccount{
		GameName:     account.GameName,
		TagLine:      account.TagLine,
		SummonerName: summonerName,
		PUUID:        account.PUUID,
		SummonerID:   summoner.ID,
		Region:       region,
		Rank:         Rank{Reason: RankNone},
	}

	entries, err := c.LeagueEntries(ctx, region, summoner.ID)
	if err != nil {
		c.Logger.WithFields(logrus.Fields{
			"summoner_id": summoner.ID,
			"error":       err.Error(),
		}).Info("rank lookup failed, continuing without rank")
		resolved.Rank = Rank{Reason: RankUnavailable}
		return resolved, nil
	}
	for _, entry := range entries {
		if entry.QueueType == rankedSoloQueue {
			resolved.Rank = Rank{Tier: entry.Tier, Division: entry.Rank, Reason: RankPlaced}
			break
		}
	}
	return resolved, nil
}
