package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ngenohkevin/cassandra-mcp/internal/metrics"
)

// Issuer is stamped into every token this service signs
const Issuer = "cassandra-mcp"

// Claims represents the claims in a JWT token
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Service checks API keys and bearer tokens. Keys can be replaced at
// runtime with Reload.
type Service struct {
	mu        sync.RWMutex
	keys      []string
	jwtSecret []byte
	logger    zerolog.Logger
}

// NewService creates a new auth service
func NewService(keys []string, jwtSecret string) *Service {
	s := &Service{logger: log.With().Str("component", "auth").Logger()}
	s.Reload(keys, jwtSecret)
	return s
}

// Reload swaps the accepted keys and the signing secret
func (s *Service) Reload(keys []string, jwtSecret string) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			cleaned = append(cleaned, k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = cleaned
	s.jwtSecret = []byte(jwtSecret)
}

// KeyCount returns the number of accepted keys
func (s *Service) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// ValidateAPIKey reports whether key is one of the accepted keys
func (s *Service) ValidateAPIKey(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// Authorize accepts either an API key or a token signed by this service
func (s *Service) Authorize(credential string) bool {
	if s.ValidateAPIKey(credential) {
		return true
	}
	_, err := s.ValidateToken(credential)
	return err == nil
}

// StatusCode maps a credential to 401 when absent, 403 when wrong and
// 200 when accepted
func (s *Service) StatusCode(credential string) int {
	switch {
	case credential == "":
		return http.StatusUnauthorized
	case s.Authorize(credential):
		return http.StatusOK
	default:
		return http.StatusForbidden
	}
}

// GenerateToken generates a new JWT token
func (s *Service) GenerateToken(role string, duration time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    Issuer,
		},
		Role: role,
	}

	s.mu.RLock()
	secret := s.jwtSecret
	s.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a JWT token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	s.mu.RLock()
	secret := s.jwtSecret
	s.mu.RUnlock()

	if len(secret) == 0 {
		return nil, errors.New("token signing is not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithIssuer(Issuer))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// LogAttempt records an authentication attempt without exposing the key
func (s *Service) LogAttempt(credential string, success bool, clientIP, transport string) {
	metrics.RecordAuth(transport, success)

	event := s.logger.Info()
	if !success {
		event = s.logger.Warn()
	}
	event.
		Str("key", Mask(credential)).
		Bool("success", success).
		Str("client_ip", clientIP).
		Str("transport", transport).
		Msg("authentication attempt")
}

// Mask hides all but the edges of a key for logging
func Mask(key string) string {
	switch {
	case key == "":
		return "[empty]"
	case len(key) <= 8:
		return key[:1] + strings.Repeat("*", len(key)-1)
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
