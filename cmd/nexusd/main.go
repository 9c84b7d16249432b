package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexus-rd/nexus/pkg/agents"
	"github.com/nexus-rd/nexus/pkg/api"
	"github.com/nexus-rd/nexus/pkg/broadcast"
	"github.com/nexus-rd/nexus/pkg/config"
	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/llm"
	"github.com/nexus-rd/nexus/pkg/observability"
	"github.com/nexus-rd/nexus/pkg/orchestrator"
	"github.com/nexus-rd/nexus/pkg/search"
	"github.com/nexus-rd/nexus/pkg/state"
	"github.com/nexus-rd/nexus/pkg/synth"
	"github.com/nexus-rd/nexus/pkg/verify"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	telemetry *observability.Telemetry
	metrics   *observability.Metrics
)

func main() {
	var (
		configPath = flag.String("config", "configs/default.yaml", "Path to configuration file")
		version    = flag.Bool("version", false, "Show version information")
		query      = flag.String("query", "", "Run a single research query instead of serving")
	)
	flag.Parse()

	if *version {
		fmt.Printf("Nexus Research Daemon\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg := config.LoadOrDefault(*configPath)

	ctx := context.Background()
	if err := initObservability(cfg); err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	defer shutdownObservability(ctx)

	log.Printf("Starting Nexus Research Daemon v%s (built: %s)", Version, BuildTime)

	if err := run(ctx, cfg, *query); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func initObservability(cfg *config.Config) error {
	telConfig := &observability.TelemetryConfig{
		ServiceName:    "nexus-research",
		ServiceVersion: Version,
		Environment:    getEnvironment(),
		OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
		PrometheusPort: cfg.Observability.Metrics.Port,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableTracing:  cfg.Observability.Tracing.Enabled,
		EnableMetrics:  cfg.Observability.Metrics.Enabled,
		EnableLogging:  true,
	}

	var err error
	telemetry, err = observability.NewTelemetry(telConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if cfg.Observability.Metrics.Enabled {
		metrics, err = observability.NewMetrics(telemetry.Meter())
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return nil
}

func shutdownObservability(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config, query string) error {
	logLevel := observability.ParseLogLevel(cfg.Observability.Logging.Level)
	logger := observability.NewStructuredLoggerWithLevel("nexusd", logLevel)

	orch, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if query != "" {
		return runOnce(ctx, cfg, orch, query)
	}
	return serve(ctx, cfg, orch, logger)
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, logger observability.Logger) (*orchestrator.Orchestrator, error) {
	geminiTimeout, err := time.ParseDuration(cfg.Gemini.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid gemini timeout: %w", err)
	}
	engine, err := llm.NewGeminiEngine(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, &llm.GeminiOptions{
		Temperature: cfg.Gemini.Temperature,
		MaxTokens:   cfg.Gemini.MaxTokens,
		Timeout:     geminiTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini engine: %w", err)
	}

	reasoner, err := llm.NewInstrumentedEngine(engine, telemetry, metrics, cfg.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to instrument engine: %w", err)
	}

	searchTimeout, err := time.ParseDuration(cfg.Search.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid search timeout: %w", err)
	}

	var (
		backend  domain.EvidenceSearcher
		provider string
	)
	if cfg.Search.APIKey == "" {
		// No live search configured. Run on simulated evidence so the
		// pipeline stays usable in demos and local development.
		log.Println("No search API key configured, using simulated evidence")
		backend = search.NewSimulatedSearcher(reasoner, logger)
		provider = "simulated"
	} else {
		serper := search.NewSerperClient(cfg.Search.BaseURL, cfg.Search.APIKey, &search.SerperOptions{
			MaxResults: cfg.Search.MaxResults,
			Timeout:    searchTimeout,
		})
		if err := serper.CheckHealth(ctx); err != nil {
			return nil, fmt.Errorf("search provider health check failed: %w", err)
		}
		log.Println("Search provider connection established")
		backend = serper
		provider = "serper"
	}

	searcher, err := search.NewInstrumentedSearcher(backend, telemetry, metrics, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to instrument searcher: %w", err)
	}

	agentLimits := agents.WithLimits(cfg.Research.FindingsPerAgent, cfg.Research.SourcesPerFinding)

	lookupTimeout, err := time.ParseDuration(cfg.Verification.LookupTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup timeout: %w", err)
	}
	verifyCfg := verify.DefaultConfig()
	verifyCfg.Concurrency = cfg.Verification.Concurrency
	verifyCfg.DisputedBand = cfg.Verification.DisputedBand
	verifyCfg.ConfirmedBand = cfg.Verification.ConfirmedBand
	verifyCfg.LookupTimeout = lookupTimeout

	agentTimeout, err := time.ParseDuration(cfg.Research.AgentTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid agent timeout: %w", err)
	}
	sessionTimeout, err := time.ParseDuration(cfg.Research.SessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid session timeout: %w", err)
	}

	return orchestrator.New(
		orchestrator.Config{
			MaxRecursionDepth: cfg.Research.MaxRecursionDepth,
			ExpansionFanOut:   cfg.Research.ExpansionFanOut,
			MaxSubQueries:     cfg.Research.MaxSubQueries,
			AgentTimeout:      agentTimeout,
			SessionTimeout:    sessionTimeout,
			MaxActiveSessions: cfg.Research.MaxActiveSessions,
		},
		orchestrator.Deps{
			ResearchAgents: []domain.Agent{
				agents.NewPatentScout(reasoner, searcher, logger, agentLimits),
				agents.NewMarketAnalyst(reasoner, searcher, logger, agentLimits),
				agents.NewTechTrend(reasoner, searcher, logger, agentLimits),
			},
			Verifier:    verify.New(searcher, verifyCfg, logger, metrics),
			Synthesizer: synth.New(reasoner, logger),
			Broadcaster: broadcast.New(cfg.Broadcast.SubscriberBuffer, logger, metrics),
			Store:       state.NewMemoryStore(),
			Telemetry:   telemetry,
			Logger:      logger,
			Metrics:     metrics,
		},
	)
}

func serve(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator, logger observability.Logger) error {
	server := api.New(api.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
	}, orch, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down api server: %v", err)
	}
	return orch.Shutdown(shutdownCtx)
}

// runOnce drives a single research session from the command line,
// streaming progress to stdout
func runOnce(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator, query string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	id, err := orch.CreateSession(ctx, domain.ResearchQuery{
		Query:             query,
		TimeRangeYears:    cfg.Research.DefaultTimeRange,
		MaxRecursionDepth: cfg.Research.MaxRecursionDepth,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	log.Printf("Session %s started", id)

	go func() {
		<-sigCh
		log.Println("Received shutdown signal, cancelling session")
		_ = orch.Cancel(context.Background(), id)
	}()

	ch, unsubscribe, err := orch.Subscribe(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer unsubscribe()

	lastPhase := domain.Phase("")
	for snapshot := range ch {
		if snapshot.Phase != lastPhase {
			log.Printf("Phase: %s (findings: %d, sources: %d)",
				snapshot.Phase, snapshot.FindingCount, snapshot.SourcesAnalyzed)
			lastPhase = snapshot.Phase
		}
		if snapshot.Phase.Terminal() {
			break
		}
	}

	report, err := orch.GetReport(ctx, id)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	printReport(report)
	return nil
}

func printReport(report *domain.Report) {
	fmt.Println("\n=== Research Report ===")
	fmt.Printf("Report ID: %s\n", report.ID)
	fmt.Printf("Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("\nHeadline: %s\n", report.Executive.Headline)
	fmt.Printf("Key Finding: %s\n", report.Executive.KeyFinding)

	if len(report.Opportunities) > 0 {
		fmt.Println("\nOpportunities:")
		for i, opp := range report.Opportunities {
			fmt.Printf("%d. %s (score: %.1f, confidence: %.2f)\n", i+1, opp.Title, opp.InvestmentScore, opp.Confidence)
			if opp.Description != "" {
				fmt.Printf("   %s\n", opp.Description)
			}
		}
	}

	fmt.Printf("\nClaims verified: %d (%d disputed)\n",
		report.Verification.TotalClaims, report.Verification.DisputedClaims)
	fmt.Printf("Sources analyzed: %d\n", report.Metadata.TotalSourcesAnalyzed)
	fmt.Printf("Sub-queries processed: %d\n", report.Metadata.SubQueriesProcessed)
	fmt.Printf("Elapsed: %.1fs\n", report.Metadata.ElapsedSeconds)
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
