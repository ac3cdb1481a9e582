package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/iwvelando/curve-factors/internal/actuarial"
	"github.com/iwvelando/curve-factors/internal/store"
	"github.com/iwvelando/curve-factors/pkg/constants"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"github.com/iwvelando/curve-factors/pkg/output"
	"github.com/iwvelando/curve-factors/pkg/tables"
	"go.uber.org/zap"
)

// Settings configures the handler.
type Settings struct {
	MaxUploadSize int64
	Version       string
	// Defaults are the curve options applied when a request does not
	// override them.
	Defaults curve.Options
	// Precision is the number of decimal places used for CSV responses.
	Precision int32
	// Sinks receive every successful batch.
	Sinks []store.Sink
}

type handler struct {
	logger   *zap.Logger
	settings Settings
}

// NewHandler constructs the HTTP handler that serves the curve factor API.
func NewHandler(logger *zap.Logger, settings Settings) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.MaxUploadSize <= 0 {
		settings.MaxUploadSize = constants.DefaultMaxUploadSizeBytes
	}
	settings.Version = strings.TrimSpace(settings.Version)
	if settings.Version == "" {
		settings.Version = "dev"
	}
	if settings.Defaults == (curve.Options{}) {
		settings.Defaults = curve.DefaultOptions()
	}
	if settings.Precision <= 0 {
		settings.Precision = constants.DefaultOutputPrecision
	}

	h := &handler{logger: logger, settings: settings}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/tables", h.handleTables).Methods(http.MethodPost)
	api.HandleFunc("/coverage", h.handleCoverage).Methods(http.MethodPost)
	api.HandleFunc("/version", h.handleVersion).Methods(http.MethodGet)

	return router
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, logger *zap.Logger, cfg *Config, handler http.Handler) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	readTimeout, writeTimeout := cfg.Timeouts()
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("op", "server.Serve"),
			zap.String("address", cfg.Address),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	logger.Info("server shutting down", zap.String("op", "server.Serve"))
	return srv.Shutdown(shutdownCtx)
}

// Values of the table query parameter used with format=csv.
const (
	tableCurves    = "curves"
	tableInflation = "inflation"
)

type tablesRequest struct {
	Settings              *requestSettings     `json:"settings,omitempty"`
	CurveObservations     []observationPayload `json:"curveObservations"`
	CurveRequirements     []curve.Requirement  `json:"curveRequirements"`
	InflationObservations []inflationPayload   `json:"inflationObservations"`
}

type requestSettings struct {
	FactorPolicy            string `json:"factorPolicy,omitempty"`
	CoveragePolicy          string `json:"coveragePolicy,omitempty"`
	FixedHorizonNodes       *int   `json:"fixedHorizonNodes,omitempty"`
	CoverageToleranceMonths *int   `json:"coverageToleranceMonths,omitempty"`
	ForwardRates            *bool  `json:"forwardRates,omitempty"`
	StrictRequirements      *bool  `json:"strictRequirements,omitempty"`
}

type observationPayload struct {
	CohortDate string  `json:"cohortDate"`
	Country    string  `json:"country"`
	Currency   string  `json:"currency"`
	Node       int     `json:"node"`
	AnnualRate float64 `json:"annualEffectiveRate"`
}

type inflationPayload struct {
	Date        string  `json:"date"`
	MonthlyRate float64 `json:"monthlyRate"`
}

type tablesResponse struct {
	RunID     string          `json:"runId"`
	Duration  string          `json:"duration"`
	Settings  settingsEcho    `json:"settings"`
	Report    curve.Report    `json:"report"`
	Curves    []curveRow      `json:"curves"`
	Inflation []inflation.Row `json:"inflation"`
	Published []string        `json:"published,omitempty"`
}

type settingsEcho struct {
	FactorPolicy   string `json:"factorPolicy"`
	CoveragePolicy string `json:"coveragePolicy"`
}

// curveRow renders dates as yyyy-mm-dd.
type curveRow struct {
	curve.Row
	CohortDate    string `json:"cohortDate"`
	ValuationDate string `json:"valuationDate"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.settings.Version,
	})
}

func (h *handler) handleTables(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTables"

	format := r.URL.Query().Get("format")
	table := r.URL.Query().Get("table")
	switch table {
	case "", tableCurves, tableInflation:
	default:
		h.respondErrorWithOp(w, http.StatusBadRequest,
			fmt.Sprintf("unknown table %q, expected %s or %s", table, tableCurves, tableInflation), op)
		return
	}

	in, opts, ok := h.decodeRequest(w, r, op)
	if !ok {
		return
	}

	result, err := actuarial.BuildTables(r.Context(), h.logger, in, opts)
	if err != nil {
		h.respondFailure(w, err, op)
		return
	}

	var published []string
	if len(h.settings.Sinks) > 0 {
		batch := store.Batch{RunID: result.RunID, Curves: result.Curves.Rows}
		if result.Inflation != nil {
			batch.Inflation = result.Inflation.Rows
		}
		if err := store.PublishAll(r.Context(), h.logger, h.settings.Sinks, batch); err != nil {
			h.respondErrorWithOp(w, http.StatusBadGateway, fmt.Sprintf("failed to publish batch %s: %v", result.RunID, err), op)
			return
		}
		for _, sink := range h.settings.Sinks {
			published = append(published, sink.Name())
		}
	}

	if format == constants.OutputFormatCSV {
		h.writeCSV(w, result, opts, table, op)
		return
	}

	rows := make([]curveRow, 0, result.Curves.Len())
	for _, row := range result.Curves.Rows {
		rows = append(rows, curveRow{
			Row:           row,
			CohortDate:    datetime.FormatDate(row.CohortDate),
			ValuationDate: datetime.FormatDate(row.ValuationDate),
		})
	}
	var inflationRows []inflation.Row
	if result.Inflation != nil {
		inflationRows = result.Inflation.Rows
	}
	if inflationRows == nil {
		inflationRows = []inflation.Row{}
	}

	h.writeJSON(w, http.StatusOK, tablesResponse{
		RunID:    result.RunID,
		Duration: result.Duration.String(),
		Settings: settingsEcho{
			FactorPolicy:   opts.FactorPolicy.String(),
			CoveragePolicy: opts.CoveragePolicy.String(),
		},
		Report:    result.Report,
		Curves:    rows,
		Inflation: inflationRows,
		Published: published,
	})
}

func (h *handler) handleCoverage(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCoverage"

	in, opts, ok := h.decodeRequest(w, r, op)
	if !ok {
		return
	}

	report, err := actuarial.CheckCoverage(h.logger, in, opts)
	if err != nil {
		h.respondFailure(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request, op string) (actuarial.Inputs, curve.Options, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.settings.MaxUploadSize)

	var req tablesRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.settings.MaxUploadSize), op)
			return actuarial.Inputs{}, curve.Options{}, false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return actuarial.Inputs{}, curve.Options{}, false
	}

	opts, err := req.Settings.apply(h.settings.Defaults)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return actuarial.Inputs{}, curve.Options{}, false
	}

	in, err := req.inputs()
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return actuarial.Inputs{}, curve.Options{}, false
	}
	return in, opts, true
}

func (s *requestSettings) apply(defaults curve.Options) (curve.Options, error) {
	opts := defaults
	if s == nil {
		return opts, nil
	}

	if s.FactorPolicy != "" {
		policy, err := curve.ParseFactorPolicy(s.FactorPolicy)
		if err != nil {
			return opts, err
		}
		opts.FactorPolicy = policy
	}
	if s.CoveragePolicy != "" {
		policy, err := curve.ParseCoveragePolicy(s.CoveragePolicy)
		if err != nil {
			return opts, err
		}
		opts.CoveragePolicy = policy
	}
	if s.FixedHorizonNodes != nil {
		opts.FixedHorizonNodes = *s.FixedHorizonNodes
	}
	if s.CoverageToleranceMonths != nil {
		opts.ToleranceMonths = *s.CoverageToleranceMonths
	}
	if s.ForwardRates != nil {
		opts.ForwardRates = *s.ForwardRates
	}
	if s.StrictRequirements != nil {
		opts.StrictRequirements = *s.StrictRequirements
	}
	return opts, opts.Validate()
}

func (req tablesRequest) inputs() (actuarial.Inputs, error) {
	in := actuarial.Inputs{CurveRequirements: req.CurveRequirements}

	for i, obs := range req.CurveObservations {
		cohortDate, err := datetime.ParseDate(obs.CohortDate)
		if err != nil {
			return in, fmt.Errorf("curveObservations[%d].cohortDate: %w", i, err)
		}
		in.CurveObservations = append(in.CurveObservations, curve.Observation{
			CohortDate: datetime.DateOnly(cohortDate),
			Country:    strings.ToUpper(strings.TrimSpace(obs.Country)),
			Currency:   strings.ToUpper(strings.TrimSpace(obs.Currency)),
			Node:       obs.Node,
			AnnualRate: obs.AnnualRate,
		})
	}
	for i := range in.CurveRequirements {
		in.CurveRequirements[i].Country = strings.ToUpper(strings.TrimSpace(in.CurveRequirements[i].Country))
		in.CurveRequirements[i].Currency = strings.ToUpper(strings.TrimSpace(in.CurveRequirements[i].Currency))
	}
	for i, obs := range req.InflationObservations {
		date, err := datetime.ParseDate(obs.Date)
		if err != nil {
			return in, fmt.Errorf("inflationObservations[%d].date: %w", i, err)
		}
		in.InflationObservations = append(in.InflationObservations, inflation.Observation{
			Date:        datetime.DateOnly(date),
			MonthlyRate: obs.MonthlyRate,
		})
	}
	return in, nil
}

// writeCSV renders one table selected by the table query parameter: the
// curve factors by default, or the inflation index.
func (h *handler) writeCSV(w http.ResponseWriter, result *actuarial.Result, opts curve.Options, table string, op string) {
	var buf bytes.Buffer
	writeOpts := tables.WriteOptions{Precision: h.settings.Precision, ForwardRates: opts.ForwardRates}

	var err error
	switch table {
	case tableInflation:
		var rows []inflation.Row
		if result.Inflation != nil {
			rows = result.Inflation.Rows
		}
		err = tables.WriteInflationIndex(&buf, rows, writeOpts)
	default:
		err = tables.WriteCurveFactors(&buf, result.Curves.Rows, writeOpts)
	}
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to render csv: %v", err), op)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("X-Run-Id", result.RunID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write CSV response", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) respondFailure(w http.ResponseWriter, err error, op string) {
	failure := output.DescribeFailure(err)
	status := http.StatusInternalServerError
	switch {
	case failure.IsInputFailure():
		status = http.StatusUnprocessableEntity
	case failure.Kind == output.FailureInvalidOptions:
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	h.logger.Warn("batch rejected",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("kind", failure.Kind),
		zap.Error(err),
	)
	h.writeJSON(w, status, map[string]output.Failure{"error": failure})
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]output.Failure{"error": {Kind: output.FailureBadRequest, Message: msg}})
}

// writeJSON encodes before writing the header so an unencodable payload
// becomes a 500 instead of a truncated success.
func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
		status = http.StatusInternalServerError
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(map[string]output.Failure{
			"error": {Kind: output.FailureInternal, Message: fmt.Sprintf("failed to encode response: %v", err)},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
