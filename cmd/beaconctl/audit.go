package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"beacon/internal/platform/kafka"
	"beacon/internal/platform/logger"
	audit "beacon/pkg/platform/audit"
	"beacon/pkg/platform/audit/consumer"
	"beacon/pkg/platform/audit/worker"
)

var tailCategories = []string{
	string(audit.CategoryCompliance),
	string(audit.CategorySecurity),
	string(audit.CategoryOperations),
}

func (c *cli) auditCmd() *cobra.Command {
	var (
		categories []string
		fromStart  bool
		limit      int
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Stream relayed audit events from Kafka",
		Long: `Consumes the per-category audit topics written by the outbox relay and
prints one line per event. Stops after --limit events, or on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load()
			if err != nil {
				return err
			}
			topics := make([]string, 0, len(categories))
			for _, cat := range categories {
				if !slices.Contains(tailCategories, cat) {
					return fmt.Errorf("unknown audit category %q", cat)
				}
				topics = append(topics, worker.TopicFor(cfg.Kafka.TopicPrefix, cat))
			}
			offset := kgo.NewOffset().AtEnd()
			if fromStart {
				offset = kgo.NewOffset().AtStart()
			}
			client, err := kafka.NewClient(cfg.Kafka,
				kgo.ConsumeTopics(topics...),
				kgo.ConsumeResetOffset(offset),
			)
			if err != nil {
				return err
			}
			if client == nil {
				return errors.New("KAFKA_BROKERS is not configured")
			}
			defer client.Close()

			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log)
			return consumer.New(client, c.tailPrinter(cmd.OutOrStdout(), limit), log).Run(cmd.Context())
		},
	}
	tail.Flags().StringSliceVar(&categories, "category", tailCategories, "audit categories to follow")
	tail.Flags().BoolVar(&fromStart, "from-start", false, "read each topic from its earliest offset")
	tail.Flags().IntVar(&limit, "limit", 0, "stop after this many events (0 follows forever)")

	cmd := &cobra.Command{Use: "audit", Short: "Audit stream tooling"}
	cmd.AddCommand(tail)
	return cmd
}

// tailPrinter renders events and returns consumer.ErrStop once limit is hit.
func (c *cli) tailPrinter(w io.Writer, limit int) consumer.Handler {
	seen := 0
	return consumer.Events(func(_ context.Context, eventID string, e audit.Event) error {
		var err error
		if c.output == "json" {
			err = json.NewEncoder(w).Encode(audit.NewEnvelope(eventID, e))
		} else {
			_, err = fmt.Fprintf(w, "%s  %-10s  %-28s  %s  actor=%s reason=%s\n",
				e.Timestamp.UTC().Format(time.RFC3339), e.Category, e.Action, e.Subject, e.ActorID, e.Reason)
		}
		if err != nil {
			return err
		}
		seen++
		if limit > 0 && seen >= limit {
			return consumer.ErrStop
		}
		return nil
	}, nil)
}
