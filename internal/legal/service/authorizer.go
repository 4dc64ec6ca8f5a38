package service

import (
	"context"
	"errors"
	"strings"

	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/sentinel"
)

// Authorizer validates isolated-store access made under a legal request
// ("legal:<request id>"): the request must be approved or fulfilled, must
// reference the signal, and may only read. Authorization ids outside the
// legal namespace are issued and checked by the caller's own system and pass
// through unchanged.
type Authorizer struct {
	store Store
}

func NewAuthorizer(store Store) *Authorizer {
	return &Authorizer{store: store}
}

func (a *Authorizer) Authorize(ctx context.Context, authorizationID string, signalID id.SignalID, action string) error {
	raw, ok := strings.CutPrefix(authorizationID, AuthorizationPrefix)
	if !ok {
		return nil
	}
	if action != "read" {
		return dErrors.New(dErrors.CodeForbidden, "legal requests only permit reads")
	}
	r, err := a.store.FindByID(ctx, id.LegalRequestID(raw))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "unknown legal request")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load legal request")
	}
	if !r.AllowsManifest() {
		return dErrors.New(dErrors.CodeForbidden, "legal request is not approved")
	}
	if !r.References(signalID) {
		return dErrors.New(dErrors.CodeForbidden, "legal request does not reference this signal")
	}
	return nil
}
