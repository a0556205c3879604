package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"

	session "github.com/clubsphere/go-session"
)

// bearerClaims is the shape of the provider-issued token.
type bearerClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

type tokenService struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          session.Logger
	now             func() time.Time
}

func newTokenService(signingKey []byte, tokenExpiration int, issuer string, audience []string, logger session.Logger) *tokenService {
	return &tokenService{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
		now:             time.Now,
	}
}

// Mint signs a fresh bearer token for the identity. Tokens are short-lived
// and re-minted on demand, which is this provider's refresh mechanism.
func (ts *tokenService) Mint(identity session.Identity) (string, error) {
	now := ts.now()
	claims := &bearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.SubjectID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Hour)),
		},
		Email:   identity.Email(),
		Name:    identity.DisplayName(),
		Picture: identity.AvatarURL(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign bearer token")
	}

	return signed, nil
}

// Validate parses and validates a previously issued token, used to resume a
// session from the token store on startup.
func (ts *tokenService) Validate(tokenString string) (*bearerClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &bearerClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "bearer token rejected")
	}

	if claims, ok := token.Claims.(*bearerClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("unable to decode bearer claims", errors.CategoryAuth)
}
