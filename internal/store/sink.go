// Package store publishes the output tables of a batch to external sinks so
// downstream reserve jobs can read them without parsing CSV.
package store

import (
	"context"
	"fmt"

	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch is one run's worth of output.
type Batch struct {
	RunID     string
	Curves    []curve.Row
	Inflation []inflation.Row
}

// Sink receives complete batches. A Sink either stores the whole batch or
// returns an error.
type Sink interface {
	Name() string
	Publish(ctx context.Context, batch Batch) error
	Close() error
}

// PublishAll sends the batch to every sink concurrently and returns the first
// error. Sinks that succeed keep what they wrote.
func PublishAll(ctx context.Context, logger *zap.Logger, sinks []Sink, batch Batch) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range sinks {
		g.Go(func() error {
			if err := sink.Publish(gctx, batch); err != nil {
				logger.Error("failed to publish batch",
					zap.String("op", "store.PublishAll"),
					zap.String("sink", sink.Name()),
					zap.String("runId", batch.RunID),
					zap.Error(err),
				)
				return fmt.Errorf("%s: %w", sink.Name(), err)
			}
			logger.Info("batch published",
				zap.String("op", "store.PublishAll"),
				zap.String("sink", sink.Name()),
				zap.String("runId", batch.RunID),
				zap.Int("curveRows", len(batch.Curves)),
				zap.Int("inflationRows", len(batch.Inflation)),
			)
			return nil
		})
	}
	return g.Wait()
}

// CloseAll closes every sink and returns the first error.
func CloseAll(sinks []Sink) error {
	var first error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = fmt.Errorf("%s: %w", sink.Name(), err)
		}
	}
	return first
}

// Targets selects the sinks to open. Nil entries are skipped.
type Targets struct {
	Postgres *PostgresConfig
	Redis    *RedisConfig
}

// Open connects every selected sink. On error the sinks opened so far are
// closed.
func Open(ctx context.Context, logger *zap.Logger, targets Targets) ([]Sink, error) {
	var sinks []Sink
	if targets.Postgres != nil {
		pg, err := NewPostgres(ctx, *targets.Postgres, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if targets.Redis != nil {
		rd, err := NewRedis(ctx, *targets.Redis, logger)
		if err != nil {
			_ = CloseAll(sinks)
			return nil, err
		}
		sinks = append(sinks, rd)
	}
	return sinks, nil
}
