package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/clienterra/leadline/internal/api"
	"github.com/clienterra/leadline/internal/genai"
	"github.com/clienterra/leadline/internal/handoff"
	"github.com/clienterra/leadline/internal/lockfile"
	"github.com/clienterra/leadline/internal/messaging"
	"github.com/clienterra/leadline/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for leadline state data
	DefaultStateDir = "/var/lib/leadline"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadline.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// Hold the state directory for the lifetime of the process so a
	// second instance cannot corrupt the SQLite state.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	genaiOpts := buildGenAIOptions(flags)
	handoffOpts := buildHandoffOptions(flags)
	apiOpts := buildAPIOptions(flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping leadline", "state_dir", *flags.stateDir, "api_addr", *flags.apiAddr)
	if err := api.Run(ctx, genaiOpts, handoffOpts, apiOpts...); err != nil {
		slog.Error("leadline failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("leadline exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	KnowledgeDBURL  string
	StateDir        string
	OpenAIKey       string
	HandoffEndpoint string
	APIAddr         string
	Workers         int
	SeedKnowledge   bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	knowledgeDSN    *string
	openaiKey       *string
	handoffEndpoint *string
	apiAddr         *string
	workers         *int
	seedKnowledge   *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		KnowledgeDBURL:  os.Getenv("KNOWLEDGE_DB_URL"),
		StateDir:        os.Getenv("LEADLINE_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		HandoffEndpoint: os.Getenv("HANDOFF_ENDPOINT"),
		APIAddr:         os.Getenv("API_ADDR"),
		Workers:         util.ParseIntEnv("EVENT_WORKERS", messaging.DefaultWorkers),
		SeedKnowledge:   util.ParseBoolEnv("KNOWLEDGE_SEED", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADLINE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL set, using SQLite in state directory", "dsn", config.DatabaseURL)
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}

	return config
}

// parseCommandLineFlags parses command line flags with environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "Directory for leadline state (SQLite database, lock file)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "Conversation state database DSN (Postgres URL or SQLite path)"),
		knowledgeDSN:    flag.String("knowledge-dsn", config.KnowledgeDBURL, "Knowledge base Postgres DSN (pgvector); empty disables retrieval"),
		openaiKey:       flag.String("openai-key", config.OpenAIKey, "OpenAI API key"),
		handoffEndpoint: flag.String("handoff-endpoint", config.HandoffEndpoint, "Manager handoff endpoint URL; empty disables handoffs"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API listen address"),
		workers:         flag.Int("workers", config.Workers, "Event processor worker count"),
		seedKnowledge:   flag.Bool("seed-knowledge", config.SeedKnowledge, "Load default snippets into an empty knowledge base at startup"),
	}
	flag.Parse()
	return flags
}

func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	return opts
}

func buildHandoffOptions(flags Flags) []handoff.Option {
	var opts []handoff.Option
	if *flags.handoffEndpoint != "" {
		opts = append(opts, handoff.WithEndpoint(*flags.handoffEndpoint))
	}
	return opts
}

func buildAPIOptions(flags Flags) []api.Option {
	return []api.Option{
		api.WithAddr(*flags.apiAddr),
		api.WithStateDSN(*flags.dbDSN),
		api.WithKnowledgeDSN(*flags.knowledgeDSN),
		api.WithWorkers(*flags.workers),
		api.WithSeedKnowledge(*flags.seedKnowledge),
	}
}
