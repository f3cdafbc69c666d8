package anchor

import (
	"encoding/hex"
	"sort"
	"time"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/goccy/go-json"
	"github.com/riftlink/riftlink/apperr"
	"github.com/riftlink/riftlink/riot"
)

// payloadVersion is bumped whenever the serialized shape changes. A digest is
// only comparable to digests produced under the same version.
const payloadVersion = 1

// PayloadAccount is the anchored view of one verified account. It carries no
// user id and no puuid; the digest commits to the public identity only.
type PayloadAccount struct {
	GameName     string `json:"game_name"`
	TagLine      string `json:"tag_line"`
	Region       string `json:"region"`
	RankTier     string `json:"rank_tier,omitempty"`
	RankDivision string `json:"rank_division,omitempty"`
}

// Payload is the document whose digest goes on chain.
type Payload struct {
	Version       int              `json:"version"`
	WalletAddress string           `json:"wallet_address"`
	Timestamp     int64            `json:"timestamp"`
	Accounts      []PayloadAccount `json:"accounts"`
}

// BuildPayload assembles the payload from verified rows. Accounts are sorted
// by (region, game_name, tag_line) so two calls over the same set serialize
// identically regardless of row order.
func BuildPayload(accounts []riot.LinkedAccount, walletAddress string, at time.Time) Payload {
	payload := Payload{
		Version:       payloadVersion,
		WalletAddress: walletAddress,
		Timestamp:     at.Unix(),
		Accounts:      make([]PayloadAccount, 0, len(accounts)),
	}
	for _, account := range accounts {
		entry := PayloadAccount{
			GameName: account.GameName,
			TagLine:  account.TagLine,
			Region:   account.Region,
		}
		if account.RankTier != nil {
			entry.RankTier = *account.RankTier
		}
		if account.RankDivision != nil {
			entry.RankDivision = *account.RankDivision
		}
		payload.Accounts = append(payload.Accounts, entry)
	}
	sort.Slice(payload.Accounts, func(i, j int) bool {
		a, b := payload.Accounts[i], payload.Accounts[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.GameName != b.GameName {
			return a.GameName < b.GameName
		}
		return a.TagLine < b.TagLine
	})
	return payload
}

// Serialize renders the canonical JSON form of the payload.
func (p Payload) Serialize() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInternal, "serializing anchor payload")
	}
	return data, nil
}

// Digest returns the blake256 hash of the serialized payload. This is the
// exact byte string embedded in the anchoring transaction.
func (p Payload) Digest() ([]byte, error) {
	data, err := p.Serialize()
	if err != nil {
		return nil, err
	}
	sum := blake256.Sum256(data)
	return sum[:], nil
}

// DigestHex is Digest rendered as lowercase hex, the form stored and shown.
func (p Payload) DigestHex() (string, error) {
	digest, err := p.Digest()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(digest), nil
}
