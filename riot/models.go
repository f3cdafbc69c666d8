package riot

import (
	"errors"
	"time"

	"github.com/riftlink/riftlink/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkedAccount is one row per provider account. The unique index on
// SummonerID means relinking the same account upserts instead of duplicating,
// no matter which user initiates the relink.
type LinkedAccount struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID       string  `json:"user_id" gorm:"index:idx_linked_accounts_user"`
	SummonerName string  `json:"summoner_name"`
	GameName     string  `json:"game_name"`
	TagLine      string  `json:"tag_line"`
	SummonerID   string  `json:"-" gorm:"index:idx_linked_accounts_summoner,unique"`
	PUUID        string  `json:"-"`
	Region       string  `json:"region"`
	RankTier     *string `json:"rank_tier"`
	RankDivision *string `json:"rank_division"`

	// VerificationCode is only present while verification is pending; it is
	// cleared the moment the row flips to verified.
	VerificationCode *string `json:"verification_code"`
	Verified         bool    `json:"verified" gorm:"default:false"`
}

// AccountBySummonerID retrieves a linked account by its provider id.
func AccountBySummonerID(summonerID string, db *gorm.DB) (LinkedAccount, error) {
	var account LinkedAccount
	result := db.First(&account, "summoner_id = ?", summonerID)
	return account, result.Error
}

// AccountForUser retrieves a row by id AND owner. Ownership is enforced by the
// compound lookup; a row owned by someone else is indistinguishable from a
// missing one.
func AccountForUser(id uint, userID string, db *gorm.DB) (LinkedAccount, error) {
	var account LinkedAccount
	if result := db.First(&account, "id = ? AND user_id = ?", id, userID); errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return account, apperr.Wrap(result.Error, apperr.ErrNotFound, "linked account not found")
	} else if result.Error != nil {
		return account, apperr.Wrap(result.Error, apperr.ErrDatabase, "")
	}
	return account, nil
}

// AccountsByUser lists every row owned by userID, newest first.
func AccountsByUser(userID string, db *gorm.DB) ([]LinkedAccount, error) {
	var accounts []LinkedAccount
	result := db.Where("user_id = ?", userID).Order("updated_at desc").Find(&accounts)
	return accounts, result.Error
}

// VerifiedAccountsByUser lists the rows that passed the icon challenge,
// ordered by summoner id so downstream digests are deterministic.
func VerifiedAccountsByUser(userID string, db *gorm.DB) ([]LinkedAccount, error) {
	var accounts []LinkedAccount
	result := db.Where("user_id = ? AND verified = ?", userID, true).Order("summoner_id").Find(&accounts)
	return accounts, result.Error
}

// Upsert writes the row, overwriting any existing row for the same provider
// account. A relink always resets the row to pending: the (possibly new)
// owner has to pass the icon challenge again before the row counts.
func (account *LinkedAccount) Upsert(db *gorm.DB) error {
	account.Verified = false
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "summoner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "summoner_name", "game_name", "tag_line", "p_uuid",
			"region", "rank_tier", "rank_division", "verification_code",
			"verified", "updated_at",
		}),
	}).Create(account).Error; err != nil {
		return apperr.Wrap(err, apperr.ErrDatabase, "storing linked account")
	}
	if account.ID == 0 {
		// The upsert path doesn't backfill the primary key on conflict.
		existing, err := AccountBySummonerID(account.SummonerID, db)
		if err != nil {
			return apperr.Wrap(err, apperr.ErrDatabase, "reloading linked account")
		}
		account.ID = existing.ID
	}
	return nil
}

// MarkVerified flips the row to verified and clears the challenge code.
func MarkVerified(id uint, db *gorm.DB) error {
	result := db.Model(&LinkedAccount{}).Where("id = ?", id).Updates(map[string]any{
		"verified":          true,
		"verification_code": nil,
	})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.ErrDatabase, "marking account verified")
	}
	return nil
}

// DeleteAccount removes the row outright. Unlink is a hard delete; there is
// no archival state for linked accounts.
func DeleteAccount(id uint, userID string, db *gorm.DB) error {
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&LinkedAccount{})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.ErrDatabase, "")
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(gorm.ErrRecordNotFound, apperr.ErrNotFound, "linked account not found")
	}
	return nil
}
