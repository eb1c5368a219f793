// fornlamningar-engine enriches a table of Swedish archaeological sites.
//
// Usage: fornlamningar-engine [-config config.yaml] <command> [flags]
//
// Commands:
//
//	migrate   Create the site table and indexes if missing
//	enrich    Split descriptions into structured attribute columns
//	generate  Write English visitor descriptions for one page of sites
//	lookup    Fill titles, keywords and missing descriptions from K-samsök
//	stats     Print row counts
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fornlamningar/fornlamningar-engine/pkg/config"
	"github.com/fornlamningar/fornlamningar-engine/pkg/database"
	"github.com/fornlamningar/fornlamningar-engine/pkg/fields"
	"github.com/fornlamningar/fornlamningar-engine/pkg/ksamsok"
	"github.com/fornlamningar/fornlamningar-engine/pkg/llm"
	"github.com/fornlamningar/fornlamningar-engine/pkg/logging"
	"github.com/fornlamningar/fornlamningar-engine/pkg/repositories"
	"github.com/fornlamningar/fornlamningar-engine/pkg/retry"
	"github.com/fornlamningar/fornlamningar-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-config path] <migrate|enrich|generate|lookup|stats> [flags]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("Command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, command string, args []string) error {
	switch command {
	case "migrate", "enrich", "generate", "lookup", "stats":
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}

	logger.Info("Starting fornlamningar-engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("command", command),
		zap.String("driver", cfg.Database.Driver),
		zap.String("table", cfg.Database.Table),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	db, err := database.Open(ctx, &database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.ConnectionString(),
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.Database.Driver, cfg.Database.Table, logger); err != nil {
		return err
	}

	repo := repositories.NewSiteRepository(db, cfg.Database.Driver, cfg.Database.Table, cfg.Database.KeyColumn)

	switch command {
	case "migrate":
		return nil
	case "enrich":
		return runEnrich(ctx, cfg, repo, logger, args)
	case "generate":
		return runGenerate(ctx, cfg, repo, logger, args)
	case "lookup":
		return runLookup(ctx, cfg, repo, logger, args)
	default:
		return runStats(ctx, repo)
	}
}

func loadAllowList(cfg *config.Config, logger *zap.Logger) (*fields.AllowList, string, error) {
	if cfg.AllowList.Path == "" {
		return fields.DefaultAllowList(), fields.DefaultCompositeSeparator, nil
	}
	allow, sep, err := fields.LoadAllowList(cfg.AllowList.Path)
	if err != nil {
		return nil, "", err
	}
	logger.Info("Loaded allow-list", zap.String("path", cfg.AllowList.Path), zap.Int("labels", allow.Len()))
	return allow, sep, nil
}

func runEnrich(ctx context.Context, cfg *config.Config, repo repositories.SiteRepository, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("enrich", flag.ExitOnError)
	workers := fs.Int("workers", cfg.Enrichment.Workers, "Rows processed in parallel")
	deleteEmpty := fs.Bool("delete-empty", cfg.Enrichment.DeleteEmpty, "Delete rows without description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	allow, sep, err := loadAllowList(cfg, logger)
	if err != nil {
		return err
	}

	svc := services.NewFieldEnrichmentService(repo, fields.NewSplitter(allow, sep), services.FieldEnrichmentConfig{
		Workers:     *workers,
		DeleteEmpty: *deleteEmpty,
	}, logger)

	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Print(services.FormatFieldEnrichmentSummary(report))
	return nil
}

func runGenerate(ctx context.Context, cfg *config.Config, repo repositories.SiteRepository, logger *zap.Logger, args []string) error {
	gc := cfg.Generation
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	limit := fs.Int("limit", gc.PageSize, "Rows to generate in this batch")
	concurrency := fs.Int("concurrency", gc.MaxConcurrent, "Concurrent generator requests")
	if err := fs.Parse(args); err != nil {
		return err
	}

	allow, _, err := loadAllowList(cfg, logger)
	if err != nil {
		return err
	}

	endpoint := gc.BaseURL
	if endpoint == "" && gc.Provider == llm.ProviderOllama {
		endpoint = llm.DefaultOllamaEndpoint
	}
	gen, err := llm.NewGenerator(&llm.Config{
		Provider:    gc.Provider,
		Endpoint:    config.ResolveURLForDocker(endpoint),
		Model:       gc.Model,
		APIKey:      gc.APIKey,
		Temperature: gc.Temperature,
		MaxTokens:   gc.MaxTokens,
		Timeout:     time.Duration(gc.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		return err
	}

	breaker := llm.NewCircuitBreaker(llm.CircuitBreakerConfig{
		Threshold:  gc.CircuitThreshold,
		ResetAfter: llm.DefaultCircuitBreakerConfig().ResetAfter,
	})
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: *concurrency}, logger)

	svc := services.NewDescriptionGenerationService(repo, allow, llm.WithCircuitBreaker(gen, breaker), pool,
		services.DescriptionGenerationConfig{
			SelectorColumn: gc.SelectorColumn,
			SelectorValue:  gc.SelectorValue,
			PageSize:       *limit,
		}, logger)

	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Print(services.FormatGenerationSummary(report))
	return nil
}

func runLookup(ctx context.Context, cfg *config.Config, repo repositories.SiteRepository, logger *zap.Logger, args []string) error {
	kc := cfg.KSamsok
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	limit := fs.Int("limit", kc.PageSize, "Rows to look up (0 for all)")
	onlyMissing := fs.Bool("only-missing", kc.OnlyMissing, "Skip rows that already have a title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	retryCfg := retry.WithMaxRetries(retry.DefaultConfig(), kc.MaxRetries)
	client, err := ksamsok.NewClient(ksamsok.Config{
		BaseURL:   kc.BaseURL,
		RateLimit: kc.RateLimit,
		Timeout:   time.Duration(kc.TimeoutSeconds) * time.Second,
		UserAgent: kc.UserAgent,
		Retry:     retryCfg,
	}, logger)
	if err != nil {
		return err
	}

	svc := services.NewMetadataLookupService(repo, client, services.MetadataLookupConfig{
		Limit:       *limit,
		OnlyMissing: *onlyMissing,
	}, logger)

	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Print(services.FormatLookupSummary(report))
	return nil
}

func runStats(ctx context.Context, repo repositories.SiteRepository) error {
	stats, err := repo.Stats(ctx)
	if err != nil {
		return err
	}
	cols, err := repo.Columns(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Table:                  %s\n", repo.Table())
	fmt.Printf("Columns:                %d\n", len(cols))
	fmt.Printf("Rows:                   %d\n", stats.Total)
	fmt.Printf("With description:       %d\n", stats.WithDescription)
	fmt.Printf("With generated text:    %d\n", stats.WithGeneratedDescription)
	fmt.Printf("With K-samsök title:    %d\n", stats.WithTitle)
	return nil
}
