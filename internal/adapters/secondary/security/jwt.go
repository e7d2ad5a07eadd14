package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// UserClaims étend les claims standards JWT
type UserClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTProvider signe en HS256 avec un secret partagé.
type JWTProvider struct {
	secret       []byte
	accessExpiry time.Duration
	issuer       string
	now          func() time.Time
}

var _ ports.TokenProvider = (*JWTProvider)(nil)

func NewJWTProvider(secret string, accessExpiry time.Duration, issuer string) (*JWTProvider, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if accessExpiry <= 0 {
		accessExpiry = 15 * time.Minute
	}
	return &JWTProvider{
		secret:       []byte(secret),
		accessExpiry: accessExpiry,
		issuer:       issuer,
		now:          time.Now,
	}, nil
}

func (j *JWTProvider) Generate(user *domain.User) (string, time.Duration, error) {
	now := j.now()
	claims := UserClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   user.ID,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return token, j.accessExpiry, nil
}

// Validate vérifie signature, expiration et émetteur, puis renvoie l'UserID (Subject).
func (j *JWTProvider) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (any, error) {
		// Refuse "none" et tout algo asymétrique substitué
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.Subject, nil
}
