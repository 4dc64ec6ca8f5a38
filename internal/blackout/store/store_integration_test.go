//go:build integration

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/blackout/models"
	"beacon/pkg/testutil/containers"
)

func TestPostgresStore_Contract(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	runContract(t, func(t *testing.T) blackoutStore {
		require.NoError(t, pg.Truncate(context.Background(), "blackouts"))
		return NewPostgres(pg.DB)
	})
}

func TestRedisStore_RealServer_Contract(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	runContract(t, func(t *testing.T) blackoutStore {
		require.NoError(t, rc.FlushAll(context.Background()))
		return NewRedis(rc.Client)
	})
}

func TestRedisStore_RealServer_SingleWinner(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	s := NewRedis(rc.Client)
	now := time.Now()

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.CreateIfAbsent(context.Background(), models.NewRecord("sig_live", now, time.Minute), now)
			assert.NoError(t, err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())
}
