//go:build integration

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"beacon/internal/platform/config"
	"beacon/internal/platform/kafka"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/audit/consumer"
	auditpostgres "beacon/pkg/platform/audit/store/postgres"
	"beacon/pkg/testutil/containers"
)

func TestOutboxRelay_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := containers.NewPostgresContainer(t)
	cfg := config.KafkaConfig{
		Brokers:     []string{containers.NewRedpandaBroker(t)},
		TopicPrefix: "beacon.audit",
	}
	compliance := TopicFor(cfg.TopicPrefix, string(audit.CategoryCompliance))
	operations := TopicFor(cfg.TopicPrefix, string(audit.CategoryOperations))

	producer, err := kafka.NewClient(cfg)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, kafka.EnsureTopics(ctx, producer, cfg, compliance, operations))

	store := auditpostgres.New(pg.DB)
	require.NoError(t, store.Append(ctx, audit.Event{
		Subject: "sig_1",
		Action:  string(audit.EventSignalRouted),
		Reason:  "partner_a",
	}))
	require.NoError(t, store.Append(ctx, audit.Event{
		Subject: "sig_1",
		Action:  string(audit.EventBlackoutStarted),
	}))

	relay := NewOutboxRelay(pg.DB, NewKafkaProducer(producer), cfg.TopicPrefix)
	n, err := relay.RelayBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = relay.RelayBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published rows are not relayed twice")

	reader, err := kafka.NewClient(cfg,
		kgo.ConsumeTopics(compliance, operations),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer reader.Close()

	got := map[string]audit.Event{}
	router := consumer.NewRouter(nil, nil)
	collect := consumer.Events(func(_ context.Context, _ string, e audit.Event) error {
		got[e.Action] = e
		if len(got) == 2 {
			return consumer.ErrStop
		}
		return nil
	}, nil)
	router.Register(compliance, collect)
	router.Register(operations, collect)
	require.NoError(t, consumer.New(reader, router, nil).Run(ctx))

	routed := got[string(audit.EventSignalRouted)]
	assert.Equal(t, audit.CategoryCompliance, routed.Category)
	assert.Equal(t, "sig_1", routed.Subject)
	assert.Equal(t, "partner_a", routed.Reason)
	assert.Equal(t, audit.CategoryOperations, got[string(audit.EventBlackoutStarted)].Category)
}
