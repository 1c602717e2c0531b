package auth

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/johnrirwin/ainewsdesk/internal/config"
	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/sources"
)

const tokenAudience = "ainewsdesk-session"

// Service issues and validates mock login tokens. There is no real identity
// provider behind it: any supported service name logs in.
type Service struct {
	config config.AuthConfig
	logger *logging.Logger
	now    func() time.Time
	suffix func() int
}

// NewService creates a new auth service
func NewService(cfg config.AuthConfig, logger *logging.Logger) *Service {
	return &Service{
		config: cfg,
		logger: logger,
		now:    time.Now,
		suffix: func() int { return 1000 + rand.IntN(9000) },
	}
}

// Login simulates signing in with service and returns the new session.
func (s *Service) Login(service string) (*models.Session, error) {
	if !sources.IsLoginService(service) {
		return nil, &AuthError{Code: "invalid_input", Message: fmt.Sprintf("unsupported login service %q", service)}
	}

	username := fmt.Sprintf("%s_User_%d", service, s.suffix())
	token, err := s.generateToken(username, service)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Mock login", logging.WithFields(map[string]interface{}{
		"service":  service,
		"username": username,
	}))

	return &models.Session{Username: username, Service: service, Token: token}, nil
}

func (s *Service) generateToken(username, service string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": username,
		"svc": service,
		"iss": s.config.Issuer,
		"aud": tokenAudience,
		"iat": now.Unix(),
		"exp": now.Add(s.config.TokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.SessionSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature, issuer, audience and expiry and returns the
// username the token was issued to.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.SessionSecret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithAudience(tokenAudience), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", &AuthError{Code: "invalid_token", Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token claims"}
	}

	username, ok := claims["sub"].(string)
	if !ok || username == "" {
		return "", &AuthError{Code: "invalid_token", Message: "invalid token subject"}
	}
	return username, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string {
	return e.Message
}
