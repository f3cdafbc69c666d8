// Package dashboard exposes the read model behind the linking wizard: where
// the user stands, and the history of their anchors. It writes nothing.
package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/riftlink/riftlink/anchor"
	"github.com/riftlink/riftlink/apperr"
	"github.com/riftlink/riftlink/riot"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service bundles the dashboard dependencies. Wallet may be nil.
type Service struct {
	Db     *gorm.DB
	Logger *logrus.Logger
	Wallet anchor.Wallet
}

// Status is the wizard state for one user. Steps unlock in order: an anchor
// is only offered once an account is verified and a wallet is reachable.
type Status struct {
	LinkedAccounts   int            `json:"linked_accounts"`
	VerifiedAccounts int            `json:"verified_accounts"`
	LinkComplete     bool           `json:"link_complete"`
	WalletConnected  bool           `json:"wallet_connected"`
	WalletAddress    string         `json:"wallet_address,omitempty"`
	AnchorReady      bool           `json:"anchor_ready"`
	LatestAnchor     *anchor.Anchor `json:"latest_anchor,omitempty"`
}

func userID(c *gin.Context) string {
	return c.GetString("user_id")
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(apperr.Status(err), apperr.Payload(err))
}

// GetStatus reports the wizard state. Wallet probing is best effort: an
// unreachable wallet renders as disconnected, never as an error.
func (s *Service) GetStatus(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}

	accounts, err := riot.AccountsByUser(uid, s.Db)
	if err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.ErrDatabase, ""))
		return
	}
	verified := 0
	for _, account := range accounts {
		if account.Verified {
			verified++
		}
	}

	status := Status{
		LinkedAccounts:   len(accounts),
		VerifiedAccounts: verified,
		LinkComplete:     verified > 0,
	}

	if s.Wallet != nil {
		ctx := c.Request.Context()
		if err := s.Wallet.Connected(ctx); err == nil {
			status.WalletConnected = true
			if address, err := s.Wallet.Address(ctx); err == nil {
				status.WalletAddress = address
			}
		} else {
			s.Logger.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Debug("wallet probe failed")
		}
	}
	status.AnchorReady = status.LinkComplete && status.WalletConnected

	if latest, err := anchor.LatestAnchorByUser(uid, s.Db); err == nil {
		status.LatestAnchor = &latest
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		abortWithError(c, apperr.Wrap(err, apperr.ErrDatabase, ""))
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListAnchors returns the user's anchoring history, newest first.
func (s *Service) ListAnchors(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}
	anchors, err := anchor.AnchorsByUser(uid, s.Db)
	if err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.ErrDatabase, ""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"anchors": anchors, "count": len(anchors)})
}
