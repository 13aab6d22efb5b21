package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const sessionLifetime = 12 * time.Hour

// handleLogin verifies the operator password and issues a session JWT.
func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if s.cfg.OperatorPasswordHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "operator login not configured"})
		return
	}
	if req.Username != s.cfg.OperatorUser ||
		bcrypt.CompareHashAndPassword([]byte(s.cfg.OperatorPasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
		Issuer:    s.cfg.TOTPIssuer,
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSigningKey))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signing session token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed, "expires_at": now.Add(sessionLifetime)})
}

// authMiddleware validates the session JWT from the Authorization
// header, or from the token query parameter for websocket upgrades.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			return []byte(s.cfg.JWTSigningKey), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		claims := token.Claims.(*jwt.RegisteredClaims)
		c.Set("user", claims.Subject)
		c.Next()
	}
}

// verifyTOTP confirms the one-time code on trade-logging requests. The
// code confirms the human is present; it never overrides a governor
// rejection.
func (s *Server) verifyTOTP(code string) bool {
	if s.cfg.TOTPSecret == "" {
		// Development convenience: without a configured secret the
		// challenge is skipped.
		return true
	}
	return totp.Validate(code, s.cfg.TOTPSecret)
}
