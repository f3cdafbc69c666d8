package anchor

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/riftlink/riftlink/apperr"
	"gorm.io/gorm"
)

// Anchor lifecycle states. A row moves strictly forward:
// submitted -> confirming -> confirmed.
const (
	StatusSubmitted  = "submitted"
	StatusConfirming = "confirming"
	StatusConfirmed  = "confirmed"
)

// Anchor is one on-chain anchoring attempt. The digest is reproducible from
// the payload; the row exists so clients can poll status without re-deriving.
type Anchor struct {
	ID        string    `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID        string `json:"user_id" gorm:"index:idx_anchors_user"`
	WalletAddress string `json:"wallet_address"`
	Network       string `json:"network"`
	Digest        string `json:"digest"`
	Txid          string `json:"txid"`
	AccountCount  int    `json:"account_count"`

	Status        string `json:"status"`
	Confirmations int64  `json:"confirmations"`
}

// Create stores the row, assigning an id when the caller didn't.
func (anchor *Anchor) Create(db *gorm.DB) error {
	if anchor.ID == "" {
		anchor.ID = uuid.NewString()
	}
	if anchor.Status == "" {
		anchor.Status = StatusSubmitted
	}
	if err := db.Create(anchor).Error; err != nil {
		return apperr.Wrap(err, apperr.ErrDatabase, "storing anchor")
	}
	return nil
}

// AnchorForUser retrieves a row by id AND owner.
func AnchorForUser(id, userID string, db *gorm.DB) (Anchor, error) {
	var anchor Anchor
	if result := db.First(&anchor, "id = ? AND user_id = ?", id, userID); errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return anchor, apperr.Wrap(result.Error, apperr.ErrNotFound, "anchor not found")
	} else if result.Error != nil {
		return anchor, apperr.Wrap(result.Error, apperr.ErrDatabase, "")
	}
	return anchor, nil
}

// AnchorsByUser lists a user's anchors, newest first.
func AnchorsByUser(userID string, db *gorm.DB) ([]Anchor, error) {
	var anchors []Anchor
	result := db.Where("user_id = ?", userID).Order("created_at desc").Find(&anchors)
	return anchors, result.Error
}

// LatestAnchorByUser returns the most recent anchor, or ErrRecordNotFound.
func LatestAnchorByUser(userID string, db *gorm.DB) (Anchor, error) {
	var anchor Anchor
	result := db.Where("user_id = ?", userID).Order("created_at desc").First(&anchor)
	return anchor, result.Error
}

// UpdateStatus records the watcher's view of the transaction. Status never
// moves backwards even if a node briefly reports fewer confirmations.
func UpdateStatus(id, status string, confirmations int64, db *gorm.DB) error {
	result := db.Model(&Anchor{}).Where("id = ?", id).Updates(map[string]any{
		"status":        status,
		"confirmations": confirmations,
	})
	if result.Error != nil {
		return apperr.Wrap(result.Error, apperr.ErrDatabase, "updating anchor status")
	}
	return nil
}

// PendingAnchors lists rows the watcher still has to track.
func PendingAnchors(db *gorm.DB) ([]Anchor, error) {
	var anchors []Anchor
	result := db.Where("status <> ?", StatusConfirmed).Find(&anchors)
	return anchors, result.Error
}
