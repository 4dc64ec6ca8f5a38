package testutil

import (
	"context"
	"errors"

	"beacon/pkg/platform/middleware/auth"
)

// OperatorToken is the bearer token StaticOperator accepts.
const OperatorToken = "operator-token"

// StaticOperator validates OperatorToken as the given operator id.
type StaticOperator string

func (o StaticOperator) ValidateToken(token string) (*auth.OperatorClaims, error) {
	if token != OperatorToken {
		return nil, errors.New("invalid token")
	}
	return &auth.OperatorClaims{OperatorID: string(o), Role: "case_worker"}, nil
}

// PartnerKeys maps partner id to raw key.
type PartnerKeys map[string]string

func (k PartnerKeys) VerifyPartnerKey(_ context.Context, partnerID, rawKey string) error {
	if want, ok := k[partnerID]; !ok || want != rawKey {
		return errors.New("partner key mismatch")
	}
	return nil
}
