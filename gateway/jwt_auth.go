// Package gateway implements the auth and http middleware shared by all
// riftlink services.
package gateway

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// JWTAuth signs and verifies the bearer tokens the API accepts.
type JWTAuth struct {
	Key []byte
}

// TokenClaims is the standard riftlink claim set. UserID is the wallet-bound
// identity every row in the system is keyed on.
type TokenClaims struct {
	UserID string `json:"user_id"`
	jwt.StandardClaims
}

const tokenLifetime = 24 * time.Hour

// Init falls back to a random key when none was configured. Tokens then do
// not survive a restart, which is acceptable for development only.
func (a *JWTAuth) Init() {
	if len(a.Key) != 0 {
		return
	}
	key, _ := GenerateSecretKey(50)
	a.Key = key
}

// GenerateJWT issues a signed token for userID.
func (a *JWTAuth) GenerateJWT(userID string) (string, error) {
	if len(a.Key) == 0 {
		return "", errors.New("empty jwt key")
	}
	claims := TokenClaims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(tokenLifetime).UTC().Unix(),
			Issuer:    "riftlink",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Key)
}

// VerifyJWT parses and validates a token, rejecting any non-HMAC alg.
func (a *JWTAuth) VerifyJWT(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.Key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("token is invalid")
}

// AuthMiddleware guards an endpoint group. It accepts the raw token or the
// "Bearer " form and puts the user id into the gin context as "user_id".
func (a *JWTAuth) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "empty header was sent"})
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims, err := a.VerifyJWT(tokenString)
		if validationErr, ok := err.(*jwt.ValidationError); ok {
			if validationErr.Errors&jwt.ValidationErrorExpired != 0 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "jwt_expired", "message": "token has expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "jwt_malformed", "message": "malformed token"})
			}
			return
		}
		if err != nil || claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "token is invalid"})
			return
		}
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// GenerateSecretKey generates a secret key for jwt signing.
func GenerateSecretKey(n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
