package jwttoken

import (
	authmw "beacon/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) *authmw.OperatorClaims {
	return &authmw.OperatorClaims{
		OperatorID: claims.OperatorID,
		Role:       claims.Role,
		JTI:        claims.ID,
	}
}

// JWTServiceAdapter satisfies authmw.JWTValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.OperatorClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
