package identify

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "idv/pkg/domain-errors"
)

// Claims are the JWT claims of a carried-in auth token: the caller already
// knows who the user is and hands us a signed assertion instead of a
// contact value.
type Claims struct {
	PartyID       string `json:"party_id"`
	VerifiedEmail string `json:"verified_email,omitempty"`
	VerifiedPhone string `json:"verified_phone,omitempty"`
	jwt.RegisteredClaims
}

// TokenService validates carried-in auth tokens and mints the ones handed
// back after a successful challenge.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewTokenService(signingKey, issuer, audience string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Generate mints a token asserting the party's identity for the given
// lifetime.
func (s *TokenService) Generate(partyID string, verifiedEmail, verifiedPhone string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PartyID:       partyID,
		VerifiedEmail: verifiedEmail,
		VerifiedPhone: verifiedPhone,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate parses and verifies a carried-in token.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "auth token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid auth token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid auth token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.PartyID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "auth token carries no party")
	}
	return claims, nil
}
