package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/lethanhdat/membank/logging"
	"github.com/lethanhdat/membank/memory"
	"github.com/lethanhdat/membank/memory/embedder/failover"
	"github.com/lethanhdat/membank/memory/embedder/gemini"
	"github.com/lethanhdat/membank/memory/store/chromem"
	"github.com/lethanhdat/membank/memory/store/firestoredoc"
	"github.com/lethanhdat/membank/memory/store/memdoc"
	"github.com/lethanhdat/membank/memory/store/sqlitedoc"
)

// config holds configuration values
type config struct {
	userID    string
	sessionID string
	logLevel  string

	// Storage
	backend  string
	dataDir  string
	project  string
	database string

	// Embeddings
	googleAPIKey  string
	dimensions    int64
	onnxModel     string
	onnxTokenizer string
	onnxLibrary   string

	// Chat model
	anthropicAPIKey string
	model           string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User the memory belongs to",
			Value:       "default_user",
			Sources:     cli.EnvVars("MEMBANK_USER_ID"),
			Destination: &cfg.userID,
		},
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Conversation session",
			Value:       "default",
			Sources:     cli.EnvVars("MEMBANK_SESSION_ID"),
			Destination: &cfg.sessionID,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("MEMBANK_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Document store backend (sqlite, firestore, memory)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("MEMBANK_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory for local databases",
			Value:       defaultDataDir(),
			Sources:     cli.EnvVars("MEMBANK_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "project",
			Usage:       "Google Cloud project ID for the firestore backend",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Usage:       "Firestore database ID",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// embeddingFlags returns flags for the embedding providers
func embeddingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "google-api-key",
			Usage:       "Google API key for Gemini embeddings",
			Sources:     cli.EnvVars("GOOGLE_API_KEY"),
			Destination: &cfg.googleAPIKey,
		},
		&cli.IntFlag{
			Name:        "dimensions",
			Usage:       "Embedding dimensionality",
			Value:       gemini.DefaultDimensions,
			Sources:     cli.EnvVars("MEMBANK_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.dimensions,
		},
		&cli.StringFlag{
			Name:        "onnx-model",
			Usage:       "Path to the local embedding model (onnx builds)",
			Sources:     cli.EnvVars("MEMBANK_ONNX_MODEL"),
			Destination: &cfg.onnxModel,
		},
		&cli.StringFlag{
			Name:        "onnx-tokenizer",
			Usage:       "Path to tokenizer.json for the local model",
			Sources:     cli.EnvVars("MEMBANK_ONNX_TOKENIZER"),
			Destination: &cfg.onnxTokenizer,
		},
		&cli.StringFlag{
			Name:        "onnx-library",
			Usage:       "Path to the onnxruntime shared library",
			Sources:     cli.EnvVars("MEMBANK_ONNX_LIBRARY"),
			Destination: &cfg.onnxLibrary,
		},
	}
}

// llmFlags returns flags for the chat model
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Claude model for chat responses",
			Sources:     cli.EnvVars("MEMBANK_MODEL"),
			Destination: &cfg.model,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".membank"
	}
	return filepath.Join(home, ".membank")
}

// loggerContext installs a logger at the configured level into ctx.
func (cfg *config) loggerContext(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newDocStore creates the KV and turn log backends. Both interfaces are
// served by the same store, so a single closer covers them.
func (cfg *config) newDocStore(ctx context.Context) (memory.KV, memory.TurnLog, func() error, error) {
	switch cfg.backend {
	case "memory":
		s := memdoc.New()
		return s, s, func() error { return nil }, nil

	case "sqlite":
		s, err := sqlitedoc.Open(filepath.Join(cfg.dataDir, "membank.db"))
		if err != nil {
			return nil, nil, nil, goerr.Wrap(err, "failed to open sqlite store")
		}
		return s, s, s.Close, nil

	case "firestore":
		if cfg.project == "" {
			return nil, nil, nil, goerr.New("project is required for the firestore backend")
		}
		s, err := firestoredoc.New(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, nil, nil, goerr.Wrap(err, "failed to connect to firestore")
		}
		return s, s, s.Close, nil

	default:
		return nil, nil, nil, goerr.New("unknown backend",
			goerr.V("backend", cfg.backend))
	}
}

// newVectorStore creates the semantic index backend. The vector store is
// local even when documents live in Firestore.
func (cfg *config) newVectorStore() (memory.VectorStore, error) {
	if cfg.backend == "memory" {
		return chromem.New()
	}
	store, err := chromem.NewPersistent(filepath.Join(cfg.dataDir, "vectors"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open vector store")
	}
	return store, nil
}

// newEmbedder builds the embedding provider: Gemini as primary when an API
// key is configured, with the local embedder behind it. Without a key the
// local embedder runs alone.
func (cfg *config) newEmbedder(ctx context.Context) (memory.Embedder, func(), error) {
	local, err := cfg.newLocalEmbedder()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create local embedder")
	}

	closeLocal := func() {
		if c, ok := local.(io.Closer); ok {
			_ = c.Close()
		}
	}
	if cfg.googleAPIKey == "" {
		return local, closeLocal, nil
	}

	primary, err := gemini.New(ctx, cfg.googleAPIKey,
		gemini.WithDimensions(int(cfg.dimensions)))
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create gemini embedder")
	}

	provider, err := failover.New(primary, local)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create embedding provider")
	}
	cleanup := func() {
		provider.Close()
		closeLocal()
	}
	return provider, cleanup, nil
}

// newManager assembles the full memory stack for the configured user and
// session. The returned cleanup closes every backend.
func (cfg *config) newManager(ctx context.Context) (*memory.Manager, func(), error) {
	kv, log, closeDoc, err := cfg.newDocStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	vectors, err := cfg.newVectorStore()
	if err != nil {
		_ = closeDoc()
		return nil, nil, err
	}

	embedder, closeEmbedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		_ = closeDoc()
		_ = vectors.Close()
		return nil, nil, err
	}

	cleanup := func() {
		closeEmbedder()
		_ = vectors.Close()
		_ = closeDoc()
	}

	mgr := memory.NewManager(cfg.userID, cfg.sessionID, kv, log, vectors, embedder)
	return mgr, cleanup, nil
}
