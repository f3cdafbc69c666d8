package anchor

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/riftlink/riftlink/apperr"
	"github.com/riftlink/riftlink/riot"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service bundles the dependencies of the anchoring endpoints. Wallet may be
// nil when no wallet backend is configured; anchoring then fails with a
// precondition error instead of a crash.
type Service struct {
	Db     *gorm.DB
	Logger *logrus.Logger
	Wallet Wallet
	// Network is the chain anchors must land on, e.g. "testnet3".
	Network string
	// ExplorerURL prefixes txids in responses, e.g. "https://testnet.dcrdata.org/tx".
	ExplorerURL string
	Watcher     *Watcher
}

// AnchorResponse is returned when an anchor transaction was broadcast.
type AnchorResponse struct {
	Success     bool   `json:"success"`
	AnchorID    string `json:"anchor_id"`
	Txid        string `json:"txid"`
	Digest      string `json:"digest"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

func userID(c *gin.Context) string {
	return c.GetString("user_id")
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(apperr.Status(err), apperr.Payload(err))
}

func (s *Service) explorerLink(txid string) string {
	if s.ExplorerURL == "" || txid == "" {
		return ""
	}
	return strings.TrimSuffix(s.ExplorerURL, "/") + "/" + txid
}

// CreateAnchor digests the caller's verified accounts and broadcasts the
// anchoring transaction. Preconditions are checked cheapest-first; the wallet
// is not touched until there is something to anchor. A network mismatch is an
// error, never an implicit switch.
func (s *Service) CreateAnchor(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}

	accounts, err := riot.VerifiedAccountsByUser(uid, s.Db)
	if err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.ErrDatabase, ""))
		return
	}
	if len(accounts) == 0 {
		abortWithError(c, apperr.Wrap(apperr.ErrPrecondition, apperr.ErrPrecondition, "no verified accounts to anchor"))
		return
	}

	if s.Wallet == nil {
		abortWithError(c, apperr.Wrap(apperr.ErrPrecondition, apperr.ErrPrecondition, "wallet not connected"))
		return
	}
	ctx := c.Request.Context()
	if err := s.Wallet.Connected(ctx); err != nil {
		abortWithError(c, apperr.Wrap(err, apperr.ErrPrecondition, "wallet not connected"))
		return
	}

	network, err := s.Wallet.Network(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if network != s.Network {
		abortWithError(c, apperr.WithFields(
			apperr.Wrap(apperr.ErrNetwork, apperr.ErrNetwork, "wallet is on the wrong network"),
			map[string]any{"expected": s.Network, "found": network},
		))
		return
	}

	address, err := s.Wallet.Address(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	payload := BuildPayload(accounts, address, time.Now().UTC())
	digest, err := payload.Digest()
	if err != nil {
		abortWithError(c, err)
		return
	}
	digestHex, _ := payload.DigestHex()

	txid, err := s.Wallet.SendAnchor(ctx, digest)
	if err != nil {
		abortWithError(c, err)
		return
	}

	row := Anchor{
		UserID:        uid,
		WalletAddress: address,
		Network:       network,
		Digest:        digestHex,
		Txid:          txid,
		AccountCount:  len(accounts),
		Status:        StatusSubmitted,
	}
	if err := row.Create(s.Db); err != nil {
		// The transaction is already on the wire; losing the row would strand
		// it, so this is reported loudly.
		s.Logger.WithFields(logrus.Fields{
			"txid":  txid,
			"error": err.Error(),
		}).Error("anchor broadcast but row not stored")
		abortWithError(c, err)
		return
	}
	if s.Watcher != nil {
		s.Watcher.Track(row.ID, txid)
	}

	s.Logger.WithFields(logrus.Fields{
		"anchor_id": row.ID,
		"txid":      txid,
		"accounts":  len(accounts),
	}).Info("anchor created")
	c.JSON(http.StatusOK, AnchorResponse{
		Success:     true,
		AnchorID:    row.ID,
		Txid:        txid,
		Digest:      digestHex,
		ExplorerURL: s.explorerLink(txid),
	})
}

// GetAnchor returns one anchor row, refreshed with the watcher's live view
// when the transaction is still pending.
func (s *Service) GetAnchor(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}
	anchor, err := AnchorForUser(c.Param("id"), uid, s.Db)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"anchor":       anchor,
		"explorer_url": s.explorerLink(anchor.Txid),
	})
}

// ListAnchors returns the caller's anchors, newest first.
func (s *Service) ListAnchors(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}
	anchors, err := AnchorsByUser(uid, s.Db)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"anchors": anchors, "count": len(anchors)})
}
