package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"google.golang.org/api/option"

	"github.com/zombor/kakeibo/internal/expense"
	"github.com/zombor/kakeibo/internal/scanning"
)

// config holds the parsed flags. Every flag can also be set through a
// KAKEIBO_ prefixed environment variable.
type config struct {
	port        *int
	store       *string
	dbPath      *string
	project     *string
	collection  *string
	credentials *string
	draftsDir   *string
	scanner     *string
	geminiKey   *string
	geminiModel *string
	genaiModel  *string
	vertex      *bool
	location    *string
	ollamaURL   *string
	ollamaModel *string
	authUsers   *string
	logLevel    *string
	logJSON     *bool
	showVersion *bool
}

func newConfig() (*config, *ff.FlagSet) {
	fs := ff.NewFlagSet("kakeibo")
	cfg := &config{
		port:        fs.IntLong("port", 8080, "HTTP server port"),
		store:       fs.StringLong("store", "bolt", "Expense store: 'bolt' or 'firestore'"),
		dbPath:      fs.StringLong("db", "kakeibo.db", "BoltDB file path"),
		project:     fs.StringLong("firestore-project", "", "Google Cloud project for Firestore (and Vertex AI)"),
		collection:  fs.StringLong("firestore-collection", expense.DefaultCollection, "Firestore collection name"),
		credentials: fs.StringLong("google-credentials", "", "Service account JSON file (defaults to application default credentials)"),
		draftsDir:   fs.StringLong("drafts-dir", "./drafts", "Directory for receipt images under review"),
		scanner:     fs.StringLong("scanner", "genai", "Scanner type: 'genai', 'gemini' or 'ollama'"),
		geminiKey:   fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel: fs.StringLong("gemini-model", "gemini-1.5-flash", "Model name for the gemini scanner"),
		genaiModel:  fs.StringLong("genai-model", "gemini-2.5-flash", "Model name for the genai scanner"),
		vertex:      fs.BoolLong("vertex", "Use Vertex AI instead of the Gemini API for the genai scanner"),
		location:    fs.StringLong("vertex-location", "us-central1", "Vertex AI location"),
		ollamaURL:   fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel: fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)"),
		authUsers:   fs.StringLong("auth-users", "", "Basic auth users as user:password pairs separated by commas (optional)"),
		logLevel:    fs.StringLong("log-level", "info", "Log level: debug, info, warn or error"),
		logJSON:     fs.BoolLong("log-json", "Log as JSON instead of console output"),
		showVersion: fs.BoolLong("version", "Show version information"),
	}
	return cfg, fs
}

// parseUsers reads "alice:secret,bob:hunter2". The user name becomes the
// owner of the records that user saves.
func parseUsers(value string) (map[string]string, error) {
	users := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, password, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("invalid auth user %q, expected user:password", pair)
		}
		if _, dup := users[name]; dup {
			return nil, fmt.Errorf("auth user %q listed twice", name)
		}
		users[name] = password
	}
	return users, nil
}

func clientOptions(cfg *config) []option.ClientOption {
	if *cfg.credentials == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(*cfg.credentials)}
}

func openDB(ctx context.Context, cfg *config) (expense.DB, error) {
	switch *cfg.store {
	case "bolt":
		return expense.NewBoltDB(*cfg.dbPath)
	case "firestore":
		return expense.NewFirestoreDB(ctx, *cfg.project, *cfg.collection, clientOptions(cfg)...)
	default:
		return nil, fmt.Errorf("invalid store %q, expected bolt or firestore", *cfg.store)
	}
}

func geminiKey(cfg *config) string {
	if *cfg.geminiKey != "" {
		return *cfg.geminiKey
	}
	return os.Getenv("GEMINI_API_KEY")
}

func newScanner(ctx context.Context, cfg *config) (scanning.Scanner, error) {
	var (
		scanner scanning.Scanner
		err     error
	)
	switch *cfg.scanner {
	case "genai":
		scanner, err = scanning.NewGenAI(ctx, scanning.GenAIConfig{
			APIKey:   geminiKey(cfg),
			Model:    *cfg.genaiModel,
			Vertex:   *cfg.vertex,
			Project:  *cfg.project,
			Location: *cfg.location,
		})
	case "gemini":
		key := geminiKey(cfg)
		if key == "" {
			return nil, fmt.Errorf("gemini API key is required, set --gemini-key or GEMINI_API_KEY")
		}
		scanner, err = scanning.NewGemini(key, *cfg.geminiModel)
	case "ollama":
		scanner, err = scanning.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q, expected genai, gemini or ollama", *cfg.scanner)
	}
	if err != nil {
		return nil, err
	}
	return scanning.Instrument(*cfg.scanner, scanner), nil
}
