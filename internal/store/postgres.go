package store

import (
	"context"
	"fmt"

	"github.com/iwvelando/curve-factors/pkg/constants"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	curveFactorsTable   = "curve_factors"
	inflationIndexTable = "inflation_index"
)

var curveFactorsColumns = []string{
	"run_id", "cohort_month_id", "cohort_date", "country", "currency", "node",
	"valuation_month_id", "valuation_date", "annual_effective_rate", "monthly_rate",
	"forward_rate", "accumulation_factor", "discount_factor", "cumulative_discount_sum", "extrapolated",
}

var inflationIndexColumns = []string{"run_id", "month_id", "monthly_rate", "cumulative_index"}

// PostgresConfig holds the Postgres sink connection settings.
type PostgresConfig struct {
	DSN    string
	Schema string
}

// Postgres copies batches into <schema>.curve_factors and
// <schema>.inflation_index, tagging every row with the run id.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
	logger *zap.Logger
}

// NewPostgres connects to the database and creates the output tables if they
// do not exist.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schema == "" {
		cfg.Schema = constants.DefaultPostgresSchema
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	p := &Postgres{pool: pool, schema: cfg.Schema, logger: logger}
	if _, err := pool.Exec(ctx, createTablesSQL(cfg.Schema)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize output tables: %w", err)
	}
	return p, nil
}

func (p *Postgres) Name() string { return "postgres" }

// Publish copies both tables inside one transaction.
func (p *Postgres) Publish(ctx context.Context, batch Batch) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{p.schema, curveFactorsTable}, curveFactorsColumns,
		pgx.CopyFromRows(curveCopyRows(batch.RunID, batch.Curves)))
	if err != nil {
		return fmt.Errorf("failed to copy curve factors: %w", err)
	}
	p.logger.Debug("copied curve factors",
		zap.String("op", "store.Postgres.Publish"),
		zap.String("runId", batch.RunID),
		zap.Int64("rows", copied),
	)

	copied, err = tx.CopyFrom(ctx, pgx.Identifier{p.schema, inflationIndexTable}, inflationIndexColumns,
		pgx.CopyFromRows(inflationCopyRows(batch.RunID, batch.Inflation)))
	if err != nil {
		return fmt.Errorf("failed to copy inflation index: %w", err)
	}
	p.logger.Debug("copied inflation index",
		zap.String("op", "store.Postgres.Publish"),
		zap.String("runId", batch.RunID),
		zap.Int64("rows", copied),
	)

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func createTablesSQL(schema string) string {
	s := pgx.Identifier{schema}.Sanitize()
	curves := pgx.Identifier{schema, curveFactorsTable}.Sanitize()
	index := pgx.Identifier{schema, inflationIndexTable}.Sanitize()
	return fmt.Sprintf(`
		CREATE SCHEMA IF NOT EXISTS %s;

		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL,
			cohort_month_id INTEGER NOT NULL,
			cohort_date DATE NOT NULL,
			country TEXT NOT NULL,
			currency TEXT NOT NULL,
			node INTEGER NOT NULL,
			valuation_month_id INTEGER NOT NULL,
			valuation_date DATE NOT NULL,
			annual_effective_rate DOUBLE PRECISION NOT NULL,
			monthly_rate DOUBLE PRECISION NOT NULL,
			forward_rate DOUBLE PRECISION,
			accumulation_factor DOUBLE PRECISION NOT NULL,
			discount_factor DOUBLE PRECISION NOT NULL,
			cumulative_discount_sum DOUBLE PRECISION NOT NULL,
			extrapolated BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, cohort_month_id, country, currency, node)
		);

		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL,
			month_id INTEGER NOT NULL,
			monthly_rate DOUBLE PRECISION NOT NULL,
			cumulative_index DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, month_id)
		);
	`, s, curves, index)
}

func curveCopyRows(runID string, rows []curve.Row) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		var forward any
		if row.ForwardRate != nil {
			forward = *row.ForwardRate
		}
		out[i] = []any{
			runID, row.CohortMonthID, row.CohortDate, row.Country, row.Currency, row.Node,
			row.ValuationMonthID, row.ValuationDate, row.AnnualRate, row.MonthlyRate,
			forward, row.AccumulationFactor, row.DiscountFactor, row.CumulativeDiscountSum, row.Extrapolated,
		}
	}
	return out
}

func inflationCopyRows(runID string, rows []inflation.Row) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = []any{runID, row.MonthID, row.MonthlyRate, row.CumulativeIndex}
	}
	return out
}
