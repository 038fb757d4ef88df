package utils

import (
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/00anuyh/souvenir/database"
	"github.com/00anuyh/souvenir/models"
)

type contextKey string

const UserIDKey = contextKey("userID")

// GenerateAccessToken issues a short-lived access token (default 15 minutes).
func GenerateAccessToken(userID uint) (string, error) {
	return GenerateAccessTokenWithExpiry(userID, 15*time.Minute)
}

// GenerateAccessTokenWithExpiry issues an access token with a custom expiry.
func GenerateAccessTokenWithExpiry(userID uint, expiry time.Duration) (string, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", errors.New("JWT_SECRET is not set")
	}
	now := time.Now()
	jti, err := generateJTI(32)
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"id":  userID,
		"exp": now.Add(expiry).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": jti,
		"aud": os.Getenv("JWT_AUD"),
		"iss": os.Getenv("JWT_ISS"),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateRefreshToken creates a refresh token, stores it and returns the
// opaque token string.
func GenerateRefreshToken(db *gorm.DB, userID uint) (string, error) {
	rt, err := models.NewRefreshToken(userID, 7)
	if err != nil {
		return "", err
	}
	if db == nil {
		db = database.DB
	}
	if db == nil {
		return "", errors.New("database not initialized")
	}
	if err := db.Create(rt).Error; err != nil {
		return "", err
	}
	return rt.ID, nil
}

// ValidateAccessToken parses and validates an access token, checking
// signature and registered claims.
func ValidateAccessToken(tokenStr string) (jwt.MapClaims, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token expired")
		}
		return nil, errors.New("invalid token")
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ValidateRefreshToken looks up a stored refresh token and rejects revoked or
// expired ones.
func ValidateRefreshToken(db *gorm.DB, id string) (*models.RefreshToken, error) {
	if db == nil {
		db = database.DB
	}
	if db == nil {
		return nil, errors.New("database not initialized")
	}
	var rt models.RefreshToken
	if err := db.Where("id = ?", id).First(&rt).Error; err != nil {
		return nil, errors.New("refresh token not found")
	}
	if rt.Revoked {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, errors.New("refresh token expired")
	}
	return &rt, nil
}

// GetUserID returns the authenticated user id placed in the request context
// by the auth middleware.
func GetUserID(r *http.Request) (uint, bool) {
	v := r.Context().Value(UserIDKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func generateJTI(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	const hex = "0123456789abcdef"
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = hex[int(b[i])%len(hex)]
	}
	return string(out), nil
}
