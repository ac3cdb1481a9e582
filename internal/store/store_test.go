package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"github.com/iwvelando/curve-factors/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleBatch() Batch {
	forward := 0.0095
	return Batch{
		RunID: "run-1",
		Curves: []curve.Row{
			{
				CohortMonthID: 202401, CohortDate: testutil.Date("2024-01-01"), Country: "CO", Currency: "COP",
				Node: 1, ValuationMonthID: 202402, ValuationDate: testutil.Date("2024-02-01"),
				AnnualRate: 0.12, MonthlyRate: 0.0095, ForwardRate: &forward,
				AccumulationFactor: 1.0095, DiscountFactor: 0.9906, CumulativeDiscountSum: 0.9906,
			},
			{
				CohortMonthID: 202401, CohortDate: testutil.Date("2024-01-01"), Country: "CO", Currency: "COP",
				Node: 2, ValuationMonthID: 202403, ValuationDate: testutil.Date("2024-03-01"),
				AnnualRate: 0.12, MonthlyRate: 0.0095,
				AccumulationFactor: 1.0191, DiscountFactor: 0.9813, CumulativeDiscountSum: 1.9719, Extrapolated: true,
			},
			{
				CohortMonthID: 202401, CohortDate: testutil.Date("2024-01-01"), Country: "PE", Currency: "PEN",
				Node: 1, ValuationMonthID: 202402, ValuationDate: testutil.Date("2024-02-01"),
				AnnualRate: 0.05, MonthlyRate: 0.0041,
				AccumulationFactor: 1.0041, DiscountFactor: 0.9959, CumulativeDiscountSum: 0.9959,
			},
		},
		Inflation: []inflation.Row{
			{MonthID: 202401, MonthlyRate: 0.01, CumulativeIndex: 1.01},
			{MonthID: 202402, MonthlyRate: 0.02, CumulativeIndex: 1.0302},
		},
	}
}

func TestKeys(t *testing.T) {
	batch := sampleBatch()
	assert.Equal(t, "cf:curve:202401:CO:COP", CurveKey("cf", batch.Curves[0]))
	assert.Equal(t, "cf:inflation", InflationKey("cf"))
	assert.Equal(t, "cf:run", RunKey("cf"))
}

func TestCurveHashes(t *testing.T) {
	hashes, err := curveHashes("cf", sampleBatch())
	require.NoError(t, err)
	require.Len(t, hashes, 2)

	cop := hashes["cf:curve:202401:CO:COP"]
	require.Len(t, cop, 2)

	var entry FactorEntry
	require.NoError(t, json.Unmarshal([]byte(cop["1"].(string)), &entry))
	assert.Equal(t, "run-1", entry.RunID)
	assert.Equal(t, 202402, entry.ValuationMonthID)
	assert.Equal(t, "2024-02-01", entry.ValuationDate)
	require.NotNil(t, entry.ForwardRate)
	assert.InDelta(t, 0.0095, *entry.ForwardRate, 1e-12)
	assert.InDelta(t, 0.9906, entry.DiscountFactor, 1e-12)

	require.NoError(t, json.Unmarshal([]byte(cop["2"].(string)), &entry))
	assert.True(t, entry.Extrapolated)

	assert.Len(t, hashes["cf:curve:202401:PE:PEN"], 1)
}

func TestInflationHash(t *testing.T) {
	fields := inflationHash(sampleBatch().Inflation)
	assert.Equal(t, map[string]any{"202401": "1.01", "202402": "1.0302"}, fields)
}

func TestCopyRows(t *testing.T) {
	batch := sampleBatch()

	rows := curveCopyRows(batch.RunID, batch.Curves)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row, len(curveFactorsColumns))
		assert.Equal(t, "run-1", row[0])
	}
	assert.Equal(t, 0.0095, rows[0][10])
	assert.Nil(t, rows[1][10])
	assert.Equal(t, true, rows[1][14])

	index := inflationCopyRows(batch.RunID, batch.Inflation)
	require.Len(t, index, 2)
	assert.Equal(t, []any{"run-1", 202402, 0.02, 1.0302}, index[1])
}

func TestCreateTablesSQL(t *testing.T) {
	sql := createTablesSQL("actuarial")
	assert.Contains(t, sql, `CREATE SCHEMA IF NOT EXISTS "actuarial"`)
	assert.Contains(t, sql, `"actuarial"."curve_factors"`)
	assert.Contains(t, sql, `"actuarial"."inflation_index"`)
	for _, column := range curveFactorsColumns {
		assert.Contains(t, sql, column)
	}

	quoted := createTablesSQL(`odd"name`)
	assert.True(t, strings.Contains(quoted, `"odd""name"`))
}

type fakeSink struct {
	name    string
	err     error
	calls   atomic.Int32
	closed  bool
	lastRun string
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Publish(_ context.Context, batch Batch) error {
	f.calls.Add(1)
	f.lastRun = batch.RunID
	return f.err
}

func (f *fakeSink) Close() error {
	f.closed = true
	return f.err
}

func TestPublishAll(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}

	err := PublishAll(context.Background(), zap.NewNop(), []Sink{a, b}, sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, "run-1", a.lastRun)

	require.NoError(t, CloseAll([]Sink{a, b}))
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestPublishAllError(t *testing.T) {
	boom := errors.New("boom")
	failing := &fakeSink{name: "failing", err: boom}

	err := PublishAll(context.Background(), nil, []Sink{&fakeSink{name: "ok"}, failing}, sampleBatch())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")

	err = CloseAll([]Sink{failing})
	assert.ErrorIs(t, err, boom)
}

func TestNewSinksRequireAddress(t *testing.T) {
	_, err := NewPostgres(context.Background(), PostgresConfig{}, nil)
	assert.ErrorContains(t, err, "dsn")

	_, err = NewRedis(context.Background(), RedisConfig{}, nil)
	assert.ErrorContains(t, err, "address")
}

func TestRedisPublishLive(t *testing.T) {
	addr := os.Getenv("CURVEFACTORS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CURVEFACTORS_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	sink, err := NewRedis(ctx, RedisConfig{Addr: addr, Prefix: "curvefactors-test"}, zap.NewNop())
	require.NoError(t, err)
	defer sink.Close()

	batch := sampleBatch()
	require.NoError(t, sink.Publish(ctx, batch))

	fields, err := sink.client.HGetAll(ctx, CurveKey("curvefactors-test", batch.Curves[0])).Result()
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	runID, err := sink.client.HGet(ctx, RunKey("curvefactors-test"), "runId").Result()
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
}

func TestPostgresPublishLive(t *testing.T) {
	dsn := os.Getenv("CURVEFACTORS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CURVEFACTORS_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	sink, err := NewPostgres(ctx, PostgresConfig{DSN: dsn, Schema: "curvefactors_test"}, zap.NewNop())
	require.NoError(t, err)
	defer sink.Close()

	batch := sampleBatch()
	batch.RunID = uuid.NewString()
	require.NoError(t, sink.Publish(ctx, batch))

	var count int
	err = sink.pool.QueryRow(ctx,
		`SELECT count(*) FROM "curvefactors_test"."curve_factors" WHERE run_id = $1`, batch.RunID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestOpenNoTargets(t *testing.T) {
	sinks, err := Open(context.Background(), nil, Targets{})
	require.NoError(t, err)
	assert.Empty(t, sinks)
}
