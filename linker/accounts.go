package linker

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/riftlink/riftlink/riot"
	"github.com/sirupsen/logrus"
)

// ListAccounts returns every account the caller has linked, verified or not.
func (s *Service) ListAccounts(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}
	accounts, err := riot.AccountsByUser(uid, s.Db)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts)})
}

// UnlinkAccount removes one of the caller's linked accounts.
func (s *Service) UnlinkAccount(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "account id must be a number"})
		return
	}
	if err := riot.DeleteAccount(uint(id), uid, s.Db); err != nil {
		abortWithError(c, err)
		return
	}
	s.Logger.WithFields(logrus.Fields{"account_id": id}).Info("account unlinked")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
