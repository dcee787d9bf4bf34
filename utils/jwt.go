package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"strings"

	"github.com/autonmap/scan-orchestrator/config"
)

func ExtractToken(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	parts := strings.Fields(authHeader)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}

func ParseToken(tokenString string, config *config.EnvConfig) (*jwt.Token, error) {
	secret := []byte(config.JWT.SecretKey)
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
}

// InjectClaimsToContext copies the owner reference out of the token claims.
// Credential issuance and scope checking live in the external auth service;
// this core only records who submitted the scan.
func InjectClaimsToContext(c *gin.Context, claims jwt.MapClaims) error {
	ownerID, ok := claims["user_id"].(string)
	if !ok || ownerID == "" {
		return errors.New("invalid user_id claim")
	}
	c.Set("user_id", ownerID)
	return nil
}
