package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/iwvelando/curve-factors/pkg/constants"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig holds the Redis sink connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL expires published keys; zero keeps them.
	TTL time.Duration
}

// Redis publishes one hash per cohort keyed
// <prefix>:curve:<cohort_month_id>:<country>:<currency> with one field per
// node, plus <prefix>:inflation with one field per month id. Each batch
// replaces the hashes it touches.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// FactorEntry is the value stored under each node field.
type FactorEntry struct {
	RunID              string   `json:"runId"`
	ValuationMonthID   int      `json:"valuationMonthId"`
	ValuationDate      string   `json:"valuationDate"`
	AnnualRate         float64  `json:"annualEffectiveRate"`
	MonthlyRate        float64  `json:"monthlyRate"`
	ForwardRate        *float64 `json:"forwardRate,omitempty"`
	AccumulationFactor float64  `json:"accumulationFactor"`
	DiscountFactor     float64  `json:"discountFactor"`
	CumulativeDiscount float64  `json:"cumulativeDiscountSum"`
	Extrapolated       bool     `json:"extrapolated,omitempty"`
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = constants.DefaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return &Redis{client: client, prefix: cfg.Prefix, ttl: cfg.TTL, logger: logger}, nil
}

func (r *Redis) Name() string { return "redis" }

// Publish writes every hash in one MULTI/EXEC transaction.
func (r *Redis) Publish(ctx context.Context, batch Batch) error {
	hashes, err := curveHashes(r.prefix, batch)
	if err != nil {
		return err
	}
	if len(batch.Inflation) > 0 {
		hashes[InflationKey(r.prefix)] = inflationHash(batch.Inflation)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, fields := range hashes {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, fields)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		pipe.HSet(ctx, RunKey(r.prefix), map[string]any{
			"runId":         batch.RunID,
			"curveRows":     len(batch.Curves),
			"inflationRows": len(batch.Inflation),
			"publishedAt":   time.Now().UTC().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	r.logger.Debug("published hashes",
		zap.String("op", "store.Redis.Publish"),
		zap.String("runId", batch.RunID),
		zap.Int("hashes", len(hashes)),
	)
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// CurveKey returns the hash key of the cohort a row belongs to.
func CurveKey(prefix string, row curve.Row) string {
	return fmt.Sprintf("%s:curve:%d:%s:%s", prefix, row.CohortMonthID, row.Country, row.Currency)
}

// InflationKey returns the hash key of the inflation index.
func InflationKey(prefix string) string {
	return prefix + ":inflation"
}

// RunKey returns the hash key describing the last published run.
func RunKey(prefix string) string {
	return prefix + ":run"
}

func curveHashes(prefix string, batch Batch) (map[string]map[string]any, error) {
	hashes := make(map[string]map[string]any)
	for _, row := range batch.Curves {
		value, err := json.Marshal(FactorEntry{
			RunID:              batch.RunID,
			ValuationMonthID:   row.ValuationMonthID,
			ValuationDate:      datetime.FormatDate(row.ValuationDate),
			AnnualRate:         row.AnnualRate,
			MonthlyRate:        row.MonthlyRate,
			ForwardRate:        row.ForwardRate,
			AccumulationFactor: row.AccumulationFactor,
			DiscountFactor:     row.DiscountFactor,
			CumulativeDiscount: row.CumulativeDiscountSum,
			Extrapolated:       row.Extrapolated,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s node %d: %w", row.Key(), row.Node, err)
		}

		key := CurveKey(prefix, row)
		fields, ok := hashes[key]
		if !ok {
			fields = make(map[string]any)
			hashes[key] = fields
		}
		fields[strconv.Itoa(row.Node)] = string(value)
	}
	return hashes, nil
}

func inflationHash(rows []inflation.Row) map[string]any {
	fields := make(map[string]any, len(rows))
	for _, row := range rows {
		fields[strconv.Itoa(row.MonthID)] = strconv.FormatFloat(row.CumulativeIndex, 'g', -1, 64)
	}
	return fields
}
