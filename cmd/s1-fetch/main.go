// Command s1-fetch pulls records from the ScholarOne Web Services API and
// writes them as CSV. Date range endpoints are fetched with adaptive range
// splitting; id endpoints are batched with checkpointed resume.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sparda104/scholarone-api-v5/pkg/catalog"
	"github.com/Sparda104/scholarone-api-v5/pkg/checkpoint"
	"github.com/Sparda104/scholarone-api-v5/pkg/chunking"
	"github.com/Sparda104/scholarone-api-v5/pkg/client"
	"github.com/Sparda104/scholarone-api-v5/pkg/logging"
	"github.com/Sparda104/scholarone-api-v5/pkg/tabular"
)

type config struct {
	Username   string
	APIKey     string
	Site       string
	EndpointID string
	From       string
	To         string
	IDs        []string
	Output     string
	RedisURL   string
	MetricsPort string
	LogLevel   string
	LogFile    string
}

func loadConfig() config {
	var ids []string
	if raw := getEnv("S1_IDS", ""); raw != "" {
		ids = strings.Split(raw, ",")
	}
	return config{
		Username:    os.Getenv("S1_USERNAME"),
		APIKey:      os.Getenv("S1_API_KEY"),
		Site:        os.Getenv("S1_SITE"),
		EndpointID:  getEnv("S1_ENDPOINT", "4"),
		From:        os.Getenv("S1_FROM"),
		To:          os.Getenv("S1_TO"),
		IDs:         ids,
		Output:      getEnv("S1_OUTPUT", "export.csv"),
		RedisURL:    os.Getenv("REDIS_URL"),
		MetricsPort: os.Getenv("METRICS_PORT"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
	}
}

func main() {
	cfg := loadConfig()

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.File = cfg.LogFile
	logger := logging.Setup(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Run failed")
	}
}

func run(ctx context.Context, cfg config, logger zerolog.Logger) error {
	ep, err := catalog.Get(cfg.EndpointID)
	if err != nil {
		return err
	}
	if err := catalog.ValidateSiteName(cfg.Site); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		logger.Info().Str("addr", cfg.RedisURL).Msg("Connected to Redis")
	}

	if cfg.MetricsPort != "" {
		go serveMetrics(cfg.MetricsPort, logger)
	}

	clientCfg := client.DefaultConfig(cfg.Username, cfg.APIKey)
	clientCfg.Redis = redisClient
	s1, err := client.New(clientCfg)
	if err != nil {
		return err
	}

	var rows []chunking.Record
	switch {
	case ep.IsDateRange():
		rows, err = fetchRange(ctx, cfg, s1, ep, logger)
	case len(cfg.IDs) > 0:
		rows, err = fetchIDs(ctx, cfg, s1, ep, redisClient, logger)
	default:
		rows, err = s1.FetchConfig(ctx, ep, cfg.Site, nil)
	}
	if err != nil {
		return err
	}

	if err := writeOutput(cfg.Output, rows, logger); err != nil {
		return err
	}

	logger.Info().
		Str("endpoint", ep.Name).
		Str("output", cfg.Output).
		Int("records", len(rows)).
		Msg("Done")
	return nil
}

func fetchRange(ctx context.Context, cfg config, s1 *client.Client, ep catalog.Endpoint, logger zerolog.Logger) ([]chunking.Record, error) {
	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("endpoint %s needs S1_FROM and S1_TO", ep.ID)
	}
	start, err := catalog.ParseDay(cfg.From)
	if err != nil {
		return nil, err
	}
	end, err := catalog.ParseDay(cfg.To)
	if err != nil {
		return nil, err
	}
	rng, err := chunking.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}

	caller, err := s1.NewRangeCaller(ep, nil)
	if err != nil {
		return nil, err
	}

	fetcher := chunking.New(caller, chunking.DefaultConfig())
	fetcher.SetProgress(func(site string, r chunking.DateRange, depth int) {
		logger.Info().
			Str("site", site).
			Str("range", r.String()).
			Int("depth", depth).
			Msg("Fetching chunk")
	})

	records, report := fetcher.Fetch(ctx, cfg.Site, rng)

	logger.Info().
		Int("calls", report.Calls).
		Int("splits", report.Splits).
		Int("records", report.Records).
		Bool("complete", report.Complete()).
		Msg("Chunked fetch finished")
	for _, gap := range report.Gaps {
		logger.Warn().
			Str("range", gap.Range.String()).
			Str("reason", string(gap.Reason)).
			Msg("Date range gap")
	}

	return records, nil
}

func fetchIDs(ctx context.Context, cfg config, s1 *client.Client, ep catalog.Endpoint, redisClient *redis.Client, logger zerolog.Logger) ([]chunking.Record, error) {
	ids := catalog.SanitizeIDs(cfg.IDs)
	batches := catalog.Batches(ep, ids)

	var store *checkpoint.Store
	startBatch := 0
	if redisClient != nil {
		store = checkpoint.NewStore(redisClient, 0, logger)
		state, err := store.Load(ctx, cfg.Site)
		switch {
		case err == nil && state.EndpointID == ep.ID && state.TotalBatches == len(batches):
			startBatch = state.BatchNum
			logger.Info().Str("checkpoint", state.Describe()).Msg("Resuming from checkpoint")
		case err != nil && !errors.Is(err, checkpoint.ErrNoCheckpoint):
			logger.Warn().Err(err).Msg("Checkpoint unavailable, starting fresh")
		}
	}

	var rows []chunking.Record
	for i := startBatch; i < len(batches); i++ {
		batchRows, err := s1.FetchByIDs(ctx, ep, cfg.Site, batches[i], nil)
		if err != nil {
			if store != nil {
				saveErr := store.Save(ctx, checkpoint.State{
					EndpointID:   ep.ID,
					Site:         cfg.Site,
					BatchNum:     i,
					TotalBatches: len(batches),
				})
				if saveErr != nil {
					logger.Error().Err(saveErr).Msg("Checkpoint save failed")
				}
			}
			return rows, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
		rows = append(rows, batchRows...)
	}

	if store != nil && startBatch > 0 {
		if err := store.Clear(ctx, cfg.Site); err != nil {
			logger.Warn().Err(err).Msg("Checkpoint clear failed")
		}
	}
	return rows, nil
}

func writeOutput(path string, rows []chunking.Record, logger zerolog.Logger) error {
	prepared := tabular.Prepare(rows, logger)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := tabular.WriteCSV(f, prepared); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func serveMetrics(port string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info().Str("addr", server.Addr).Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("Metrics server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
