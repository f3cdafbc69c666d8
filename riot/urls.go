package riot

import "net/url"

// Platform region codes as Riot names them. The UI sends these verbatim.
const (
	RegionNA1  = "na1"
	RegionBR1  = "br1"
	RegionLA1  = "la1"
	RegionLA2  = "la2"
	RegionEUW1 = "euw1"
	RegionEUN1 = "eun1"
	RegionTR1  = "tr1"
	RegionRU   = "ru"
	RegionKR   = "kr"
	RegionJP1  = "jp1"
	RegionOC1  = "oc1"
)

// Routing clusters for the account-v1 API. Identity lookups go to the
// continental cluster, everything else to the platform region host.
const (
	ClusterAmericas = "americas"
	ClusterEurope   = "europe"
	ClusterAsia     = "asia"
	ClusterSEA      = "sea"
)

var routingClusters = map[string]string{
	RegionNA1:  ClusterAmericas,
	RegionBR1:  ClusterAmericas,
	RegionLA1:  ClusterAmericas,
	RegionLA2:  ClusterAmericas,
	RegionEUW1: ClusterEurope,
	RegionEUN1: ClusterEurope,
	RegionTR1:  ClusterEurope,
	RegionRU:   ClusterEurope,
	RegionKR:   ClusterAsia,
	RegionJP1:  ClusterAsia,
	RegionOC1:  ClusterSEA,
}

// RoutingCluster maps a platform region to its continental routing cluster.
// Unknown regions fall back to americas, matching Riot's own guidance.
func RoutingCluster(region string) string {
	if cluster, ok := routingClusters[region]; ok {
		return cluster
	}
	return ClusterAmericas
}

// IsValidRegion reports whether region is a platform code we route for.
func IsValidRegion(region string) bool {
	_, ok := routingClusters[region]
	return ok
}

const apiHostSuffix = ".api.riotgames.com"

// VerificationIconRange is the size of the default icon catalog (icons 0-28).
// Verification codes are drawn from [0, VerificationIconRange).
const VerificationIconRange = 29

const rankedSoloQueue = "RANKED_SOLO_5x5"

func accountByRiotIDPath(gameName, tagLine string) string {
	return "/riot/account/v1/accounts/by-riot-id/" +
		url.PathEscape(gameName) + "/" + url.PathEscape(tagLine)
}

func summonerByPUUIDPath(puuid string) string {
	return "/lol/summoner/v4/summoners/by-puuid/" + url.PathEscape(puuid)
}

func summonerByIDPath(summonerID string) string {
	return "/lol/summoner/v4/summoners/" + url.PathEscape(summonerID)
}

func leagueEntriesPath(summonerID string) string {
	return "/lol/league/v4/entries/by-summoner/" + url.PathEscape(summonerID)
}
