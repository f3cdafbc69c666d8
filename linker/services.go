package linker

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/riftlink/riftlink/apperr"
	"github.com/riftlink/riftlink/riot"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const resolveCacheTTL = 10 * time.Minute

// Service bundles the dependencies of the account-linking endpoints.
type Service struct {
	Db     *gorm.DB
	Redis  *redis.Client
	Logger *logrus.Logger
	Riot   *riot.Client
}

// LinkRequest is the link endpoint body. The legacy shape carried a single
// summoner_name instead of the riot id pair; both are accepted.
type LinkRequest struct {
	GameName     string `json:"game_name"`
	TagLine      string `json:"tag_line"`
	SummonerName string `json:"summoner_name"`
	Region       string `json:"region" binding:"required"`
}

// VerifyRequest is the verify endpoint body.
type VerifyRequest struct {
	AccountID uint `json:"account_id" binding:"required"`
}

// LinkResponse is returned on a successful link. The verification code is the
// profile icon the user has to set before calling verify.
type LinkResponse struct {
	Success          bool   `json:"success"`
	VerificationCode string `json:"verification_code"`
	AccountID        uint   `json:"account_id"`
}

// VerifyResponse distinguishes "ran and matched" from "ran and mismatched".
// A mismatch is a user-correctable outcome, not an error.
type VerifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func userID(c *gin.Context) string {
	return c.GetString("user_id")
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(apperr.Status(err), apperr.Payload(err))
}

func validationPayload(errs validator.ValidationErrors) gin.H {
	fields := map[string]any{}
	for _, fieldErr := range errs {
		fields[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return gin.H{"code": "validation_error", "message": "request fields validation error", "fields": fields}
}

// riotID normalizes the request into a (gameName, tagLine) pair. The legacy
// summoner_name field is split on '#'; without a tag the region code serves
// as the default tag, which is Riot's own convention for migrated accounts.
func (req *LinkRequest) riotID() (string, string) {
	gameName, tagLine := strings.TrimSpace(req.GameName), strings.TrimSpace(req.TagLine)
	if gameName == "" && req.SummonerName != "" {
		legacy := strings.TrimSpace(req.SummonerName)
		if name, tag, found := strings.Cut(legacy, "#"); found {
			gameName, tagLine = strings.TrimSpace(name), strings.TrimSpace(tag)
		} else {
			gameName = legacy
		}
	}
	if gameName != "" && tagLine == "" {
		tagLine = strings.ToUpper(req.Region)
	}
	return gameName, tagLine
}

func (s *Service) resolveCacheKey(region, gameName, tagLine string) string {
	return "riotid:" + region + ":" + strings.ToLower(gameName) + "#" + strings.ToLower(tagLine)
}

// resolveAccount consults the redis cache before going out to the provider.
// Cache failures are logged and ignored; the provider is the source of truth.
func (s *Service) resolveAccount(c *gin.Context, region, gameName, tagLine string) (riot.ResolvedAccount, error) {
	ctx := c.Request.Context()
	key := s.resolveCacheKey(region, gameName, tagLine)
	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, key).Result(); err == nil {
			var resolved riot.ResolvedAccount
			if err := json.Unmarshal([]byte(cached), &resolved); err == nil {
				return resolved, nil
			}
		}
	}
	resolved, err := s.Riot.ResolveAccount(ctx, region, gameName, tagLine)
	if err != nil {
		return resolved, err
	}
	if s.Redis != nil {
		if data, err := json.Marshal(&resolved); err == nil {
			if err := s.Redis.Set(ctx, key, data, resolveCacheTTL).Err(); err != nil {
				s.Logger.WithFields(logrus.Fields{
					"key":   key,
					"error": err.Error(),
				}).Info("resolve cache write failed")
			}
		}
	}
	return resolved, nil
}

// LinkAccount resolves a riot id, assigns a fresh icon challenge and upserts
// the row in pending state. Relinking an already-linked account overwrites the
// previous link and resets verification.
func (s *Service) LinkAccount(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}

	var req LinkRequest
	bindingErr := c.ShouldBindWith(&req, binding.JSON)
	switch bindingErr := bindingErr.(type) {
	case validator.ValidationErrors:
		c.JSON(http.StatusBadRequest, validationPayload(bindingErr))
		return
	case nil:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": bindingErr.Error()})
		return
	}

	gameName, tagLine := req.riotID()
	if gameName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "game_name or summoner_name is required"})
		return
	}
	if !riot.IsValidRegion(req.Region) {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "unknown region: " + req.Region})
		return
	}

	resolved, err := s.resolveAccount(c, req.Region, gameName, tagLine)
	if err != nil {
		abortWithError(c, err)
		return
	}

	code := strconv.Itoa(rand.Intn(riot.VerificationIconRange))
	account := riot.LinkedAccount{
		UserID:           uid,
		SummonerName:     resolved.SummonerName,
		GameName:         resolved.GameName,
		TagLine:          resolved.TagLine,
		SummonerID:       resolved.SummonerID,
		PUUID:            resolved.PUUID,
		Region:           req.Region,
		VerificationCode: &code,
	}
	if resolved.Rank.Placed() {
		tier, division := resolved.Rank.Tier, resolved.Rank.Division
		account.RankTier, account.RankDivision = &tier, &division
	}

	if existing, err := riot.AccountBySummonerID(resolved.SummonerID, s.Db); err == nil && existing.UserID != uid {
		s.Logger.WithFields(logrus.Fields{
			"summoner_id": resolved.SummonerID,
			"old_user":    existing.UserID,
			"new_user":    uid,
		}).Warn("relink transfers provider account to a new user")
	}

	if err := account.Upsert(s.Db); err != nil {
		abortWithError(c, err)
		return
	}

	s.Logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"region":     req.Region,
	}).Info("account linked, verification pending")
	c.JSON(http.StatusOK, LinkResponse{Success: true, VerificationCode: code, AccountID: account.ID})
}

// VerifyAccount re-fetches the account's current profile icon and compares it
// to the stored challenge. Already-verified rows short-circuit to success
// without touching the provider or the row.
func (s *Service) VerifyAccount(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized access"})
		return
	}

	var req VerifyRequest
	bindingErr := c.ShouldBindWith(&req, binding.JSON)
	switch bindingErr := bindingErr.(type) {
	case validator.ValidationErrors:
		c.JSON(http.StatusBadRequest, validationPayload(bindingErr))
		return
	case nil:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": bindingErr.Error()})
		return
	}

	account, err := riot.AccountForUser(req.AccountID, uid, s.Db)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if account.Verified {
		c.JSON(http.StatusOK, VerifyResponse{Success: true, Message: "account already verified"})
		return
	}
	if account.VerificationCode == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "database_error", "message": "pending account has no verification code"})
		return
	}

	summoner, err := s.Riot.SummonerByID(c.Request.Context(), account.Region, account.SummonerID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	expected, err := strconv.Atoi(*account.VerificationCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "database_error", "message": "stored verification code is not a number"})
		return
	}

	if summoner.ProfileIconID != expected {
		c.JSON(http.StatusOK, VerifyResponse{
			Success: false,
			Message: fmt.Sprintf("profile icon does not match: expected icon #%d, found #%d. Update your profile icon in the League client and try again.", expected, summoner.ProfileIconID),
		})
		return
	}

	if err := riot.MarkVerified(account.ID, s.Db); err != nil {
		abortWithError(c, err)
		return
	}
	s.Logger.WithFields(logrus.Fields{"account_id": account.ID}).Info("account verified")
	c.JSON(http.StatusOK, VerifyResponse{Success: true, Message: "account verified successfully"})
}
