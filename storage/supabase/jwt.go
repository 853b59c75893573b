package supabase

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core/gateway"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims are the session claims the auth server signs.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// JWTVerifier proves sessions locally with the project's HS256 JWT secret.
type JWTVerifier struct {
	secret []byte
}

var _ gateway.IdentityResolver = (*JWTVerifier)(nil)

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Resolve(_ context.Context, token string) (gateway.Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return gateway.Identity{}, ErrExpiredToken
		}
		return gateway.Identity{}, errors.Wrap(ErrInvalidToken, err.Error())
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return gateway.Identity{}, errors.Wrap(ErrMissingClaim, "sub")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return gateway.Identity{UserID: sub, Email: email, Role: role, Claims: claims}, nil
}

// Generate signs a session for subject, for tooling and tests.
func (v *JWTVerifier) Generate(subject, email string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		Email: email,
		Role:  "authenticated",
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}
