package credentials

import (
	"context"
	"sync"

	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// KeyRing holds raw partner keys used to authenticate outbound webhooks.
// It lives in process memory only and is filled from the seed file at boot.
type KeyRing struct {
	mu   sync.RWMutex
	keys map[id.PartnerID]string
}

func NewKeyRing() *KeyRing {
	return &KeyRing{keys: make(map[id.PartnerID]string)}
}

func (k *KeyRing) Put(partnerID id.PartnerID, key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[partnerID] = key
}

// PartnerCredential returns sentinel.ErrNotFound when no key was loaded.
func (k *KeyRing) PartnerCredential(_ context.Context, partnerID id.PartnerID) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[partnerID]
	if !ok || key == "" {
		return "", sentinel.ErrNotFound
	}
	return key, nil
}
