package jwttoken

import (
	"hackmate/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *ParticipantClaims) *auth.Claims {
	return &auth.Claims{
		ParticipantID: claims.Subject,
		Email:         claims.Email,
		TokenID:       claims.ID,
	}
}

// JWTServiceAdapter lets the auth middleware validate participant tokens.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
