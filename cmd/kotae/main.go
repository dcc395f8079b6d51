// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/guardrail"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/memory"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; real environment always wins.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "index":
		runIndex()
	case "query":
		runQuery()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// components bundles everything the pipeline needs, for commands that run
// against the local artifacts.
type components struct {
	Store    *vectorstore.Store
	Registry *storage.SQLiteStorage
	Keyword  *keyword.BleveIndex
	Metrics  *metrics.Registry
	Pipeline *rag.Pipeline
}

func (c *components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
}

func apiKey() string {
	if key := os.Getenv("KOTAE_API_KEY"); key != "" {
		return key
	}
	// Local OpenAI-compatible endpoints (Ollama) accept any key.
	return "ollama"
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := vectorstore.NewStore(cfg.Storage.IndexPath, cfg.Storage.MetaPath, cfg.LLM.Dimensions, logger)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	registry, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open document registry: %w", err)
	}
	kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	client := llm.NewOpenAIClient(cfg.LLM.BaseURL, apiKey(), cfg.LLM.EmbeddingModel, cfg.LLM.Dimensions)
	// The pipeline bounds its own calls; the guardrail's embedder needs the
	// same per-call deadline.
	guardEmbedder := llm.NewTimeoutEmbedder(client, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	guard := guardrail.NewEngine(guardEmbedder, cfg.Retrieval.RerankConcurrency, logger)
	reg := metrics.NewRegistry()
	pipeline, err := rag.NewPipeline(cfg, store, registry, client, client, guard, memory.NewStore(), reg, logger)
	if err != nil {
		_ = registry.Close()
		_ = kw.Close()
		return nil, err
	}
	return &components{Store: store, Registry: registry, Keyword: kw, Metrics: reg, Pipeline: pipeline}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded", zap.String("config_path", resolvedPath), zap.Bool("debug", debugMode))

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	extractor := extract.NewExtractor()
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchers []*watcher.Watcher
	for _, dir := range cfg.Watch.Directories {
		w := watcher.New(dir, cfg.Watch.Extensions,
			func(path string) {
				ingestFile(comps, extractor, path, logger)
			},
			func(path string) {
				docID := fileDocID(path)
				if _, err := comps.Pipeline.Delete(context.Background(), docID); err != nil {
					logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
				}
				_ = comps.Keyword.Delete(context.Background(), docID)
			},
			watcher.WithLogger(logger),
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.String("dir", dir), zap.Error(err))
		}
		watchers = append(watchers, w)
	}

	srv := server.NewServer(comps.Pipeline, comps.Registry, comps.Keyword, comps.Metrics, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	for _, w := range watchers {
		w.Stop()
	}
	if err := comps.Store.Save(); err != nil {
		logger.Warn("vector store save failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// fileDocID derives a stable document id from a file path so re-drops of the
// same file replace rather than duplicate.
func fileDocID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()
}

func ingestFile(comps *components, extractor *extract.Extractor, path string, logger *zap.Logger) {
	text, err := extractor.Extract(path)
	if err != nil {
		logger.Warn("extraction failed", zap.String("path", path), zap.Error(err))
		return
	}
	docID := fileDocID(path)
	title := filepath.Base(path)
	ctx := context.Background()
	// Ingest replaces any previous version of the same file.
	if _, _, err := comps.Pipeline.Ingest(ctx, text, docID, title, "watch"); err != nil {
		logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	if err := comps.Keyword.Index(ctx, docID, title, text); err != nil {
		logger.Warn("keyword indexing failed", zap.String("path", path), zap.Error(err))
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	docID := fs.String("id", "", "document id (defaults to a generated id)")
	title := fs.String("title", "", "document title (defaults to the file name)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae index [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, logger, comps := mustComponents(*configPath)
	defer comps.Close()
	defer logger.Sync()

	text, err := extract.NewExtractor().Extract(path)
	if err != nil {
		fmt.Printf("Extraction failed: %v\n", err)
		os.Exit(1)
	}
	name := *title
	if name == "" {
		name = filepath.Base(path)
	}
	id, chunks, err := comps.Pipeline.Ingest(context.Background(), text, *docID, name, "cli")
	if err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	if err := comps.Keyword.Index(context.Background(), id, name, text); err != nil {
		fmt.Printf("Warning: keyword indexing failed: %v\n", err)
	}
	fmt.Printf("Indexed %s as %s (%d chunks)\n", path, id, chunks)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: kotae query [flags] <question>")
		os.Exit(1)
	}

	_, logger, comps := mustComponents(*configPath)
	defer comps.Close()
	defer logger.Sync()

	result, err := comps.Pipeline.AnswerQuery(context.Background(), models.QueryRequest{Question: question})
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(result.Decision.FinalAnswer)
	fmt.Printf("\nconfidence: %d (%s)", result.Confidence.Score, result.Confidence.Level)
	if result.Decision.Reason != nil {
		fmt.Printf("  reason: %s", *result.Decision.Reason)
	}
	fmt.Println()
	for _, src := range result.Sources {
		fmt.Printf("  source: %s\n", src.DocID)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae delete [flags] <doc-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	_, logger, comps := mustComponents(*configPath)
	defer comps.Close()
	defer logger.Sync()

	removed, err := comps.Pipeline.Delete(context.Background(), id)
	if err != nil {
		fmt.Printf("Delete failed: %v\n", err)
		os.Exit(1)
	}
	_ = comps.Keyword.Delete(context.Background(), id)
	fmt.Printf("Deleted %s (%d chunks removed)\n", id, removed)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, comps := mustComponents(*configPath)
	defer comps.Close()
	defer logger.Sync()

	docs, err := comps.Registry.Count(context.Background())
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("documents: %d\n", docs)
	fmt.Printf("chunks:    %d\n", comps.Store.Count())
	fmt.Printf("dimensions: %d\n", comps.Store.Dimensions())
	fmt.Printf("index size: %d bytes\n", comps.Store.IndexFileSize())
}

// mustComponents loads config, builds a production logger, and initializes
// the local components, exiting on any failure.
func mustComponents(configPath string) (*config.Config, *zap.Logger, *components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, comps
}

func printUsage() {
	fmt.Println(`kotae - retrieval-augmented answering over your documents

Usage:
  kotae server [-config path] [-debug]   start the HTTP API server
  kotae index  [-config path] [-id id] [-title t] <file>
                                         extract, chunk, embed, and index a file
  kotae query  [-config path] <question> answer a question from the index
  kotae delete [-config path] <doc-id>   remove a document from the index
  kotae status [-config path]            show index statistics
  kotae version                          print the version`)
}
