// Package auth signs and verifies offer response tokens. A token lets the
// offered applicant answer a single offer until the offer's deadline.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// expiryLeeway covers the whole-second precision of the exp claim. The exact
// deadline is enforced against the offer itself.
const expiryLeeway = time.Second

// Claims carries the standard claims plus the offer being answered.
type Claims struct {
	jwt.RegisteredClaims
	OfferID     string
	ApplicantID string
}

// GenerateResponseToken signs a token that expires together with the offer.
func GenerateResponseToken(offer *models.Offer, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        offer.ID,
			Subject:   offer.ApplicantID,
			IssuedAt:  jwt.NewNumericDate(offer.SentAt),
			ExpiresAt: jwt.NewNumericDate(offer.ExpiresAt),
		},
		OfferID:     offer.ID,
		ApplicantID: offer.ApplicantID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseResponseToken verifies tokenString at now. It returns
// common.ErrTokenExpired once the offer deadline has passed by more than
// expiryLeeway and common.ErrInvalidToken for anything else that fails
// verification. Callers still check the offer's own deadline.
func ParseResponseToken(tokenString string, secretKey []byte, now time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(expiryLeeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.OfferID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
