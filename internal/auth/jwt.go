package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtIssuer = "madrasah"

// Claims is the payload of a session token, it only identifies the
// session; everything mutable lives in the session record
type Claims struct {
	UserId string `json:"userId"`
	jwt.RegisteredClaims
}

type GenerateJwtOpts struct {
	SessionId string
	UserId    string
	Secret    string
	Ttl       time.Duration
	Now       time.Time
}

func GenerateJwt(opts GenerateJwtOpts) (string, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	claims := Claims{
		UserId: opts.UserId,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        opts.SessionId,
			Issuer:    jwtIssuer,
			Subject:   opts.UserId,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.Ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(opts.Secret))
}

// ValidateJwt verifies the signature and expiry of a token and returns
// its claims
func ValidateJwt(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrorJwtTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrorJwtTokenSignature
		}
		return nil, fmt.Errorf("%w: %s", ErrorJwtClaimsInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" || claims.UserId == "" {
		return nil, ErrorJwtClaimsInvalid
	}
	return claims, nil
}
