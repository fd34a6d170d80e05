package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/datasud/idgo/internal/common/apperrors"
)

// Claim names read from identity tokens.
const (
	ClaimSubject  = "sub"
	ClaimUsername = "preferred_username"
	ClaimAdmin    = "admin"
)

// Identity is what a request tells about its user before the local store is
// consulted.
type Identity struct {
	Username string
	IsAdmin  bool
}

// CreateToken signs an HS256 identity token. Used by the command line and tests.
func CreateToken(secret, issuer string, id Identity, ttl time.Duration) (string, apperrors.Error) {
	if secret == "" {
		return "", ErrTokenCreation.Msg("no signing secret configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		ClaimSubject: id.Username,
		ClaimAdmin:   id.IsAdmin,
		"iat":        jwt.NewNumericDate(now),
		"nbf":        jwt.NewNumericDate(now.Add(-2 * time.Minute)),
		"exp":        jwt.NewNumericDate(now.Add(ttl)),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", ErrTokenCreation.Err(err)
	}
	return signed, nil
}

// ParseToken validates an HS256 identity token and returns who it names.
func ParseToken(ctx context.Context, secret, issuer, tokenString string) (*Identity, apperrors.Error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("failed to parse token")
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrUnableToParseToken.Err(err)
		}
		return nil, ErrInvalidToken.Err(err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	id := &Identity{}
	if name, ok := claims[ClaimUsername].(string); ok && name != "" {
		id.Username = name
	} else if sub, ok := claims[ClaimSubject].(string); ok {
		id.Username = sub
	}
	if id.Username == "" {
		return nil, ErrInvalidToken.Msg("the token does not name a user")
	}
	id.IsAdmin, _ = claims[ClaimAdmin].(bool)
	return id, nil
}
