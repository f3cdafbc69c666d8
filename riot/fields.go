package riot

// Account is the account-v1 response: the cross-product identity for a riot id.
type Account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// Summoner is the summoner-v4 response. ID is region-scoped, PUUID is global.
type Summoner struct {
	ID            string `json:"id"`
	AccountID     string `json:"accountId"`
	PUUID         string `json:"puuid"`
	Name          string `json:"name"`
	ProfileIconID int    `json:"profileIconId"`
	SummonerLevel int64  `json:"summonerLevel"`
}

// LeagueEntry is one queue entry from league-v4. We only ever keep solo queue.
type LeagueEntry struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// RankReason distinguishes "provider says unranked" from "lookup failed".
// Both end up as a null rank on the stored row, but they are not the same thing.
type RankReason string

const (
	RankPlaced      RankReason = "placed"
	RankNone        RankReason = "none"
	RankUnavailable RankReason = "unavailable"
)

// Rank is the optional solo-queue placement of an account.
type Rank struct {
	Tier     string     `json:"tier,omitempty"`
	Division string     `json:"division,omitempty"`
	Reason   RankReason `json:"reason,omitempty"`
}

// Placed reports whether the account holds an actual placement.
func (r Rank) Placed() bool {
	return r.Reason == RankPlaced
}

// ResolvedAccount is the normalized output of ResolveAccount.
type ResolvedAccount struct {
	GameName     string `json:"game_name"`
	TagLine      string `json:"tag_line"`
	SummonerName string `json:"summoner_name"`
	PUUID        string `json:"puuid"`
	SummonerID   string `json:"summoner_id"`
	Region       string `json:"region"`
	Rank         Rank   `json:"rank"`
}
