package jwt

import (
	"time"
)

// Service is a wrapper for JWT operations
type Service struct {
	secretKey string
	expiry    time.Duration
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if secretKey == "" {
		secretKey = "devJwtSecretDoNotUseInProduction"
	}

	if expiry == 0 {
		expiry = 24 * time.Hour
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
	}
}

// GenerateToken generates a JWT token for a user
func (s *Service) GenerateToken(userID, username string) (string, error) {
	return generateToken(s.secretKey, s.expiry, userID, username)
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return validateToken(s.secretKey, tokenString)
}
