package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/internal/config"
	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/pkg/crypto"
)

const issuer = "devicestate-server"

var ErrInvalidToken = errors.New("invalid token")

// Kind distinguishes user sessions from device sessions
type Kind string

const (
	KindUser    Kind = "user"
	KindDevice  Kind = "device"
	KindRefresh Kind = "refresh"
)

// JWTManager manages JWT tokens
type JWTManager struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(cfg *config.JWTConfig) *JWTManager {
	return &JWTManager{
		config: cfg,
		now:    time.Now,
	}
}

// Claims represents JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Kind     Kind       `json:"kind"`
	UserID   uuid.UUID  `json:"user_id"`
	DeviceID *uuid.UUID `json:"device_id,omitempty"`
	Email    string     `json:"email,omitempty"`
	IsAdmin  bool       `json:"is_admin,omitempty"`
}

// UserLookup loads the current version of a user
type UserLookup func(ctx context.Context, id uuid.UUID) (*models.User, error)

func (m *JWTManager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    issuer,
		ID:        uuid.New().String(),
	}
}

func (m *JWTManager) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// GenerateTokenPair generates access and refresh tokens
func (m *JWTManager) GenerateTokenPair(user *models.User) (string, string, error) {
	accessToken, err := m.sign(Claims{
		RegisteredClaims: m.registered(user.ID.String(), m.config.AccessTokenTTL),
		Kind:             KindUser,
		UserID:           user.ID,
		Email:            user.Email,
		IsAdmin:          user.IsAdmin,
	})
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := m.sign(Claims{
		RegisteredClaims: m.registered(user.ID.String(), m.config.RefreshTokenTTL),
		Kind:             KindRefresh,
		UserID:           user.ID,
	})
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// GenerateDeviceToken generates the access token a device uses for reports
func (m *JWTManager) GenerateDeviceToken(device *models.Device) (string, error) {
	deviceID := device.ID
	token, err := m.sign(Claims{
		RegisteredClaims: m.registered(device.ID.String(), m.config.DeviceTokenTTL),
		Kind:             KindDevice,
		UserID:           device.UserID,
		DeviceID:         &deviceID,
	})
	if err != nil {
		return "", fmt.Errorf("sign device token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a token
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RefreshToken exchanges a refresh token for a new token pair
func (m *JWTManager) RefreshToken(ctx context.Context, refreshTokenString string, lookup UserLookup) (string, string, error) {
	claims, err := m.ValidateToken(refreshTokenString)
	if err != nil {
		return "", "", err
	}
	if claims.Kind != KindRefresh {
		return "", "", fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}

	user, err := lookup(ctx, claims.UserID)
	if err != nil {
		return "", "", fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return "", "", fmt.Errorf("%w: account is disabled", ErrInvalidToken)
	}

	return m.GenerateTokenPair(user)
}

// VerifyPassword verifies a password against a hash
func (m *JWTManager) VerifyPassword(password, hash string) bool {
	return crypto.VerifyPassword(password, hash)
}
