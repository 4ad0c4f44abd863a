// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm/logger"

	"github.com/tejzpr/sieve/internal/config"
	"github.com/tejzpr/sieve/internal/embeddings"
	"github.com/tejzpr/sieve/internal/engine"
	"github.com/tejzpr/sieve/internal/history"
	"github.com/tejzpr/sieve/internal/record"
	"github.com/tejzpr/sieve/internal/simindex"
	"github.com/tejzpr/sieve/internal/tagging"
	"github.com/tejzpr/sieve/pkg/scheduler"
)

// Version is set at build time via ldflags (e.g. goreleaser -X main.Version={{.Version}}).
var Version string

func main() {
	log.SetOutput(os.Stderr)

	configPath := flag.String("config", "", "Path to config file")
	dbType := flag.String("db-type", "", "Database type (sqlite or postgres)")
	dbPath := flag.String("db-path", "", "Database path (for sqlite)")
	dbDSN := flag.String("db-dsn", "", "Database DSN (for postgres)")

	ingest := flag.String("ingest", "", "Submit candidates from a JSON-lines file ('-' for stdin)")
	stats := flag.Bool("stats", false, "Print record store statistics")
	export := flag.String("export", "", "Export primary records as JSON to a file ('-' for stdout)")
	prune := flag.Bool("prune", false, "Prune stale recommendation history entries")
	rebuildIndex := flag.Bool("rebuild-index", false, "Rebuild the similarity index from the record store")
	mark := flag.String("mark", "", "Mark an identity as recommended today")
	markScore := flag.Int("score", 0, "Score recorded with --mark (e.g. stars)")
	eligible := flag.String("eligible", "", "Check whether an identity is outside its cooldown")
	serve := flag.Bool("serve", false, "Run with metrics endpoint and background history pruning")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Sieve deduplication engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ingestion:\n")
		fmt.Fprintf(os.Stderr, "  %s --ingest items.jsonl     Submit candidates from a file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --ingest -               Submit candidates from stdin\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nRecommendation history:\n")
		fmt.Fprintf(os.Stderr, "  %s --mark acme/widget --score 500\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --eligible acme/widget\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --prune\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMaintenance:\n")
		fmt.Fprintf(os.Stderr, "  %s --stats                  Record store statistics\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --export records.json    Export primary records\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --rebuild-index          Re-derive the vector index\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --serve                  Metrics endpoint + scheduled pruning\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DB_TYPE            Database type (sqlite or postgres)\n")
		fmt.Fprintf(os.Stderr, "  DB_PATH            SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  DB_DSN             PostgreSQL connection string\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY     API key when the openai embedding provider is configured\n")
	}

	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config from %s: %v", *configPath, err)
		}
		log.Printf("Loaded configuration from %s", *configPath)
	} else {
		cfg, err = config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}

	applyEnvOverrides(cfg)
	applyCLIOverrides(cfg, *dbType, *dbPath, *dbDSN)

	// Connect the record store
	db, err := record.Connect(&record.DBConfig{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
		LogLevel:    logger.Silent,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer record.Close(db)

	if err := record.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	store := record.NewStore(db, nil)

	eng, err := buildEngine(cfg, store)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	ctx := context.Background()

	switch {
	case *ingest != "":
		runIngest(ctx, eng, *ingest)
	case *stats:
		runStats(store)
	case *export != "":
		runExport(store, *export)
	case *mark != "":
		if err := eng.MarkRecommended(*mark, *markScore); err != nil {
			log.Fatalf("Failed to mark %s: %v", *mark, err)
		}
		log.Printf("Marked %s as recommended (score %d)", *mark, *markScore)
	case *eligible != "":
		fmt.Println(eng.IsEligible(*eligible, cfg.History.CooldownDays))
	case *prune:
		removed, err := eng.PruneHistory(cfg.History.RetentionDays)
		if err != nil {
			log.Fatalf("Failed to prune history: %v", err)
		}
		log.Printf("Pruned %d history entries", removed)
	case *rebuildIndex:
		count, err := eng.RebuildIndex(ctx)
		if err != nil {
			log.Fatalf("Index rebuild failed after %d records: %v", count, err)
		}
		log.Printf("Rebuilt similarity index with %d records", count)
	case *serve:
		runServe(cfg, eng)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// buildEngine wires the configured components into the dedup core
func buildEngine(cfg *config.Config, store *record.Store) (*engine.Engine, error) {
	var tagger *tagging.Tagger
	if cfg.Tagging.RulesPath != "" {
		rules, err := tagging.LoadRuleset(cfg.Tagging.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load tagging rules: %w", err)
		}
		tagger = tagging.NewTagger(rules)
		log.Printf("Loaded tagging rules from %s", cfg.Tagging.RulesPath)
	} else {
		tagger = tagging.NewTagger(nil)
	}

	hist, err := history.NewStore(cfg.History.Path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	var idx simindex.Index
	var embedder embeddings.Client
	if cfg.Index.Enabled {
		embedder, err = buildEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		vecIdx, err := simindex.NewVecgoIndex(cfg.Embedding.Dimensions)
		if err != nil {
			return nil, err
		}
		idx = vecIdx
		info := embedder.GetModelInfo()
		log.Printf("Similarity index enabled (provider=%s model=%s dims=%d)",
			info.Provider, info.Name, info.Dimensions)
	} else {
		log.Println("Similarity index disabled, exact-match dedup only")
	}

	opts := engine.Options{
		DefaultThreshold: cfg.Dedup.Threshold,
		Thresholds:       cfg.Dedup.Thresholds,
		QueryK:           cfg.Index.QueryK,
		MaxProvenance:    cfg.Dedup.MaxProvenance,
		QueryTimeout:     time.Duration(cfg.Index.TimeoutSeconds) * time.Second,
		Retry: simindex.RetryPolicy{
			MaxAttempts:    cfg.Index.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Index.Retry.InitialBackoffMS) * time.Millisecond,
			Multiplier:     cfg.Index.Retry.Multiplier,
		},
	}

	metrics := engine.NewMetrics(prometheus.DefaultRegisterer)
	eng := engine.New(store, idx, embedder, tagger, hist, opts, nil, metrics)

	// The vector index is in-process and starts empty; hydrate it from the
	// store so fuzzy matching covers records from previous runs.
	if idx != nil {
		count, err := eng.RebuildIndex(context.Background())
		if err != nil {
			log.Printf("Warning: index hydration failed after %d records: %v", count, err)
		} else if count > 0 {
			log.Printf("Hydrated similarity index with %d records", count)
		}
	}
	return eng, nil
}

func buildEmbedder(cfg *config.Config) (embeddings.Client, error) {
	switch cfg.Embedding.Provider {
	case "", "local":
		return embeddings.NewHashingClient(cfg.Embedding.Dimensions), nil
	case "openai":
		apiKey := cfg.Embedding.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an API key")
		}
		return embeddings.NewOpenAIClient(cfg.Embedding.BaseURL, apiKey,
			cfg.Embedding.Model, cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

// runIngest submits one candidate per JSON line and prints a summary
func runIngest(ctx context.Context, eng *engine.Engine, path string) {
	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", path, err)
		}
		defer f.Close()
		in = f
	}

	var created, merged, rejected, failed int
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var cand engine.Candidate
		if err := json.Unmarshal(scanner.Bytes(), &cand); err != nil {
			log.Printf("line %d: bad JSON: %v", line, err)
			rejected++
			continue
		}

		res, err := eng.SubmitCandidate(ctx, cand)
		if err != nil {
			var verr *engine.ValidationError
			if errors.As(err, &verr) {
				log.Printf("line %d: %v", line, err)
				rejected++
				continue
			}
			// Storage failures must not mark the item as seen
			log.Printf("line %d: %v (item not recorded)", line, err)
			failed++
			continue
		}
		if res.IsNew {
			created++
		} else {
			merged++
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	log.Printf("Ingest complete: %d new, %d deduplicated, %d rejected, %d failed",
		created, merged, rejected, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func runStats(store *record.Store) {
	stats, err := store.Stats()
	if err != nil {
		log.Fatalf("Failed to compute stats: %v", err)
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode stats: %v", err)
	}
	fmt.Println(string(out))
}

func runExport(store *record.Store, path string) {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", path, err)
		}
		defer f.Close()
		out = f
	}

	count, err := store.ExportJSON(out)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	log.Printf("Exported %d primary records", count)
}

// runServe exposes prometheus metrics and keeps the history pruner running
func runServe(cfg *config.Config, eng *engine.Engine) {
	sched := scheduler.NewScheduler(eng, cfg.History.PruneIntervalHours, cfg.History.RetentionDays)
	sched.Start()
	defer sched.Stop()
	log.Printf("History pruner scheduled every %dh (retention %d days)",
		cfg.History.PruneIntervalHours, cfg.History.RetentionDays)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Printf("Metrics listening on %s", cfg.Metrics.Addr)
	if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *config.Config) {
	if dbType := getEnv("DB_TYPE", "SIEVE_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from ENV: %s", dbType)
	}
	if dbPath := getEnv("DB_PATH", "SIEVE_DB_PATH"); dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from ENV")
	}
	if dbDSN := getEnv("DB_DSN", "SIEVE_DB_DSN"); dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from ENV (hidden)")
	}
}

// applyCLIOverrides applies command-line flag overrides to configuration
func applyCLIOverrides(cfg *config.Config, dbType, dbPath, dbDSN string) {
	if dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from CLI: %s", dbType)
	}
	if dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from CLI")
	}
	if dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from CLI (hidden)")
	}
}

// getEnv tries multiple environment variable names and returns the first non-empty value
func getEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}
