// Package main is the kioku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/engine"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/fetch"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/watcher"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
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
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "answer":
		runAnswer()
	case "feedback":
		runFeedback()
	case "rebuild":
		runRebuild()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components holds initialized services for direct (serverless) mode.
type components struct {
	Store  storage.Store
	Engine *engine.Engine
}

func (c *components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := storage.NewJSONLStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	fetcher := fetch.NewHTTPFetcher(
		fetch.WithAllowedDomains(cfg.Fetch.AllowedDomains),
		fetch.WithTimeout(time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second),
		fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
	)
	eng := engine.NewEngine(
		store,
		filepath.Join(cfg.Storage.DataDir, "index.json"),
		engine.WithLogger(logger),
		engine.WithFetcher(fetcher),
		engine.WithChunking(cfg.Ingest.ChunkChars, cfg.Ingest.OverlapChars),
		engine.WithSearchDefaults(cfg.Search.DefaultTopK, cfg.Search.DefaultMinScore, cfg.Search.AnswerMinScore),
	)
	return &components{Store: store, Engine: eng}, nil
}

func mustSetup(configPath string) (*config.Config, *zap.Logger, *components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, comps
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
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

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	extractor := extract.NewExtractor()
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Ingest.DropDirectories,
		cfg.Ingest.Extensions,
		func(path string) {
			text, err := extractor.Extract(path)
			if err != nil {
				logger.Warn("drop extract failed", zap.String("path", path), zap.Error(err))
				return
			}
			_, err = comps.Engine.Ingest(context.Background(), &models.IngestRequest{
				Docs: []models.IngestDoc{{
					Title:  filepath.Base(path),
					Text:   text,
					Source: "drop_dir",
				}},
			})
			if err != nil {
				logger.Warn("drop ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Ingest.DropDirectories) > 0 {
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(comps.Engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuery joins all positional args with spaces so multi-word queries work
// the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	domain := fs.String("domain", "", "default domain tag for ingested documents")
	tags := fs.String("tags", "", "comma-separated tags")
	source := fs.String("source", "manual", "source label")
	urls := fs.String("urls", "", "comma-separated URLs to fetch and ingest")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	req := &models.IngestRequest{
		Domain: *domain,
		Source: *source,
	}
	for _, t := range strings.Split(*tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			req.Tags = append(req.Tags, t)
		}
	}
	for _, u := range strings.Split(*urls, ",") {
		if u = strings.TrimSpace(u); u != "" {
			req.URLs = append(req.URLs, u)
		}
	}
	extractor := extract.NewExtractor()
	for _, path := range fs.Args() {
		text, err := extractor.Extract(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
			os.Exit(1)
		}
		req.Docs = append(req.Docs, models.IngestDoc{
			Title: filepath.Base(path),
			Text:  text,
		})
	}
	if len(req.Docs) == 0 && len(req.URLs) == 0 {
		fmt.Println("Usage: kioku ingest [flags] <file>... (or -urls <url,...>)")
		os.Exit(1)
	}

	var result models.IngestResult
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/ingest", req, &result); err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, comps := mustSetup(*configPath)
		defer logger.Sync()
		defer comps.Close()
		res, err := comps.Engine.Ingest(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
		result = *res
	}
	fmt.Printf("created_chunks: %d  skipped: %d  urls_fetched: %d\n",
		result.CreatedChunks, result.Skipped, result.URLsFetched)
	for _, fe := range result.Errors {
		fmt.Printf("fetch error: %s: %s\n", fe.URL, fe.Error)
	}
}

func runSearch() {
	searchArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	domain := fs.String("domain", "", "restrict results to this domain tag")
	topK := fs.Int("top-k", 0, "number of results (default from config, clamped 1-30)")
	minScore := fs.Float64("min-score", 0, "minimum similarity score (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgs)

	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: kioku search [flags] <query>")
		os.Exit(1)
	}
	req := &models.SearchRequest{Query: queryStr, Domain: *domain, TopK: *topK}
	// Only forward the floor when the flag was given, so an explicit
	// -min-score 0 is honored and the server default applies otherwise.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "min-score" {
			req.MinScore = minScore
		}
	})

	var response models.SearchResponse
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/search", req, &response); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, comps := mustSetup(*configPath)
		defer logger.Sync()
		defer comps.Close()
		res, err := comps.Engine.Search(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = *res
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(response)
		return
	}
	fmt.Printf("%d result(s) (index version %d)\n", response.Count, response.IndexVersion)
	for i, hit := range response.Results {
		fmt.Printf("%d. [%.4f] %s (%s)\n", i+1, hit.Score, hit.Title, hit.Domain)
		fmt.Printf("   %s\n", utils.Truncate(hit.Text, 200))
	}
}

func runAnswer() {
	answerArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("answer", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	domain := fs.String("domain", "", "restrict evidence to this domain tag")
	topK := fs.Int("top-k", 0, "number of evidence hits")
	mode := fs.String("mode", models.ModeBalanced, "answer mode: concise or balanced")
	citations := fs.Bool("citations", true, "include citations")
	_ = fs.Parse(answerArgs)

	question := buildQuery(fs.Args())
	if question == "" {
		fmt.Println("Usage: kioku answer [flags] <question>")
		os.Exit(1)
	}
	req := &models.AnswerRequest{
		Question:         question,
		Domain:           *domain,
		TopK:             *topK,
		Mode:             *mode,
		RequireCitations: citations,
	}

	var response models.AnswerResponse
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/answer", req, &response); err != nil {
			fmt.Fprintf(os.Stderr, "Answer failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, comps := mustSetup(*configPath)
		defer logger.Sync()
		defer comps.Close()
		res, err := comps.Engine.Answer(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Answer failed: %v\n", err)
			os.Exit(1)
		}
		response = *res
	}
	fmt.Println(response.Answer)
	fmt.Printf("\nconfidence: %.3f  evidence: %d\n", response.Confidence, response.EvidenceCount)
	for _, c := range response.Citations {
		fmt.Printf("- %s (%s, %.4f)\n", c.Title, c.Domain, c.Score)
	}
}

func runFeedback() {
	fs := flag.NewFlagSet("feedback", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	query := fs.String("query", "", "the original question")
	answer := fs.String("answer", "", "the answer being rated")
	rating := fs.String("rating", models.RatingNeutral, "rating: up, down, or neutral")
	domain := fs.String("domain", "", "domain tag")
	_ = fs.Parse(os.Args[2:])

	req := &models.FeedbackRequest{
		Query:  *query,
		Answer: *answer,
		Rating: *rating,
		Domain: *domain,
	}
	if *serverURL != "" {
		var out struct {
			Feedback models.FeedbackRecord `json:"feedback"`
		}
		if err := postJSON(*serverURL+"/api/v1/feedback", req, &out); err != nil {
			fmt.Fprintf(os.Stderr, "Feedback failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("recorded: %s (%s)\n", out.Feedback.ID, out.Feedback.Rating)
		return
	}
	_, logger, comps := mustSetup(*configPath)
	defer logger.Sync()
	defer comps.Close()
	rec, err := comps.Engine.Feedback(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Feedback failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("recorded: %s (%s)\n", rec.ID, rec.Rating)
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	_ = fs.Parse(os.Args[2:])

	var result models.RebuildResult
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/reindex", struct{}{}, &result); err != nil {
			fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, comps := mustSetup(*configPath)
		defer logger.Sync()
		defer comps.Close()
		res, err := comps.Engine.Rebuild(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
			os.Exit(1)
		}
		result = *res
	}
	fmt.Printf("total_docs: %d  index_version: %d\n", result.TotalDocs, result.Version)
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var stats models.StatsResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/stats", &stats); err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, comps := mustSetup(*configPath)
		defer logger.Sync()
		defer comps.Close()
		res, err := comps.Engine.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
		stats = *res
	}
	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(stats)
		return
	}
	fmt.Printf("total_documents: %d\n", stats.TotalDocuments)
	fmt.Printf("feedback_count:  %d\n", stats.FeedbackCount)
	fmt.Printf("index_exists:    %t\n", stats.IndexExists)
	for d, n := range stats.Domains {
		fmt.Printf("domain %-16s %d\n", d+":", n)
	}
}

func postJSON(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`kioku - lightweight document retrieval engine with feedback memory

Usage:
  kioku server [flags]                 Start the HTTP server
  kioku ingest [flags] <file>...       Ingest documents (or -urls <url,...>)
  kioku search [flags] <query>         Search the indexed corpus
  kioku answer [flags] <question>      Synthesize an answer with citations
  kioku feedback [flags]               Record feedback on an answer
  kioku rebuild [flags]                Rebuild the index snapshot
  kioku stats [flags]                  Show corpus and index status
  kioku version                        Show version
  kioku help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.

Examples:
  kioku server
  kioku ingest --domain bio notes.md
  kioku ingest -urls https://example.org/article
  kioku search --domain bio "cats mammals"
  kioku answer --mode concise "are cats mammals"
  kioku feedback --rating up --query "are cats mammals" --answer "Yes, cats are mammals."
  kioku stats --output json`)
}
