package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	errTokenDisabled = errors.New("token issuance disabled")
	errInvalidToken  = errors.New("invalid token")
)

const anonIDClaim = "anon_id"

// AdminTokenHeader carries the operator token for system messages.
const AdminTokenHeader = "X-Admin-Token"

// generateJWT signs a token carrying the anonymous id.
func (h *Handler) generateJWT(anonID string) (string, error) {
	if h.cfg.Auth.Secret == "" {
		return "", errTokenDisabled
	}
	claims := jwt.MapClaims{
		anonIDClaim: anonID,
		"exp":       time.Now().Add(h.cfg.Auth.TokenTTL).Unix(),
		"iss":       h.cfg.Auth.Issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.Auth.Secret))
}

// validateAndGetAnonID checks signature, expiry and issuer and returns the anonymous id.
func (h *Handler) validateAndGetAnonID(tokenString string) (string, error) {
	if h.cfg.Auth.Secret == "" {
		return "", errTokenDisabled
	}
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte(h.cfg.Auth.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.cfg.Auth.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}
	anonID, ok := claims[anonIDClaim].(string)
	if !ok || anonID == "" {
		return "", errInvalidToken
	}
	return anonID, nil
}

// GetAnonID creates an anonymous id and returns it with a signed token.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := uuid.NewString()

	token, err := h.generateJWT(anonID)
	if errors.Is(err, errTokenDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Token issuance is not configured"})
		return
	}
	if err != nil {
		h.log.Error("Failed to sign token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}

// bearerToken reads the token from the Authorization header, falling back to the
// token query parameter since browsers cannot set headers on WebSocket requests.
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return c.Query("token")
}

// requestAnonID returns the anonymous id of the request's token, or "" when no
// token was sent and auth is optional. On failure it has already answered 401.
func (h *Handler) requestAnonID(c *gin.Context) (string, bool) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		if h.cfg.Auth.Required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return "", false
		}
		return "", true
	}
	anonID, err := h.validateAndGetAnonID(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return "", false
	}
	return anonID, true
}

// isAdmin reports whether the request carries the configured operator token.
func (h *Handler) isAdmin(c *gin.Context) bool {
	want := h.cfg.Auth.AdminToken
	if want == "" {
		return false
	}
	got := c.GetHeader(AdminTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
