package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/coursemate/internal/assistant"
	"github.com/pavelanni/coursemate/internal/handler"
	appI18n "github.com/pavelanni/coursemate/internal/i18n"
	"github.com/pavelanni/coursemate/internal/llm"
	"github.com/pavelanni/coursemate/internal/llm/queue"
	"github.com/pavelanni/coursemate/internal/model"
	"github.com/pavelanni/coursemate/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coursemate",
		Short: "Course assistant that drafts quizzes, analyzes results and answers questions",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), generateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `coursemate --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addLLMFlags registers the completion API settings shared by serve and generate.
func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the LLM (or set COURSEMATE_LLM_KEY)")
	f.String("llm-model", llm.DefaultModel, "LLM model name")
	f.Duration("llm-retry-delay", llm.DefaultInitialDelay, "Delay before the first retry of a rate-limited call")
	f.Int("llm-attempts", llm.DefaultMaxAttempts, "Attempts per completion, the first one included")
	f.String("prompts-dir", "", "Directory with prompt templates overriding the built-in ones")
	f.Int("excerpt-len", 0, "Characters of each material included in generation prompts (0 = default)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "coursemate.db", "SQLite database path")
	f.String("files-dir", "materials", "Directory for uploaded material files")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /ru)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Bool("queue-analysis", false, "Route submission analysis through the completion queue")
	f.Int64("max-upload", 10<<20, "Maximum material upload size in bytes")
	f.Bool("allow-signup", false, "Let visitors register student accounts at /signup")
	f.Bool("skip-ping", false, "Start without checking the LLM endpoint")
	f.String("admin-password", "", "Initial admin password (or set COURSEMATE_ADMIN_PASSWORD)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a course's submissions and analyses as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "coursemate.db", "SQLite database path")
	f.Int64("course", 0, "Course ID to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("course")

	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an assignment from local text files and print it as JSON",
		RunE:  runGenerate,
	}
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.StringSliceP("file", "f", nil, "Material text files (repeatable)")
	f.String("quiz-type", string(model.QuizSingleChoice), "Quiz type (single_choice, multiple_choice)")
	f.String("instructions", "", "Additional instructions for the generator")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COURSEMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("coursemate")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/coursemate")
	v.AddConfigPath("/etc/coursemate")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func llmConfig(v *viper.Viper) llm.Config {
	return llm.Config{
		BaseURL:      v.GetString("llm-url"),
		APIKey:       v.GetString("llm-key"),
		Model:        v.GetString("llm-model"),
		InitialDelay: v.GetDuration("llm-retry-delay"),
		MaxAttempts:  v.GetInt("llm-attempts"),
	}
}

func assistantConfig(v *viper.Viper) assistant.Config {
	cfg := assistant.Config{
		QueueAnalysis: v.GetBool("queue-analysis"),
		ExcerptLen:    v.GetInt("excerpt-len"),
	}
	if dir := v.GetString("prompts-dir"); dir != "" {
		cfg.Prompts = os.DirFS(dir)
	}
	return cfg
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := db.CleanupExpiredSessions(ctx); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	langs := appI18n.Languages()
	if !slices.Contains(langs, lang) {
		slog.Warn("no message catalog for default language", "lang", lang, "available", langs)
	}
	slog.Info("message catalogs loaded", "languages", langs)

	// Create LLM client. Completions share one queue unless sent direct.
	q := queue.New()
	defer q.Close()
	cfg := llmConfig(v)
	llmClient := llm.New(cfg, llm.WithQueue(q))
	if !v.GetBool("skip-ping") {
		if err := llmClient.Ping(ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", cfg.BaseURL, "model", llmClient.Model())
	}
	if err := db.SetMetadata(ctx, store.MetaLLMModel, llmClient.Model()); err != nil {
		return fmt.Errorf("record LLM model: %w", err)
	}
	if err := db.SetMetadata(ctx, store.MetaLLMBaseURL, cfg.BaseURL); err != nil {
		return fmt.Errorf("record LLM URL: %w", err)
	}

	filesDir := v.GetString("files-dir")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return fmt.Errorf("create files dir: %w", err)
	}
	files := afero.NewBasePathFs(afero.NewOsFs(), filesDir)

	ai, err := assistant.New(db, llmClient, files, assistantConfig(v))
	if err != nil {
		return fmt.Errorf("create assistant: %w", err)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(db, ai, files, model.Config{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		MaxUploadSize: v.GetInt64("max-upload"),
		AllowSignup:   v.GetBool("allow-signup"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware)

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", llmClient.Model(),
		"llm_url", cfg.BaseURL,
		"lang", lang,
		"files_dir", filesDir,
		"queue_analysis", v.GetBool("queue-analysis"),
		"base_path", basePath,
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportCourse(context.Background(), v.GetInt64("course"))
	if err != nil {
		return fmt.Errorf("export course: %w", err)
	}
	return writeJSONOutput(v.GetString("output"), export)
}

// runGenerate drafts an assignment from local files without a database on
// disk: the files become file materials of a throwaway in-memory course.
func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.New(":memory:")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	files := afero.NewReadOnlyFs(afero.NewOsFs())
	var ids []int64
	for _, path := range v.GetStringSlice("file") {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		if _, err := files.Stat(abs); err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		id, err := db.CreateMaterial(ctx, model.Material{
			Title:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			ContentType: model.ContentFile,
			FilePath:    abs,
		})
		if err != nil {
			return fmt.Errorf("add material %s: %w", path, err)
		}
		ids = append(ids, id)
	}

	ai, err := assistant.New(db, llm.New(llmConfig(v)), files, assistantConfig(v))
	if err != nil {
		return fmt.Errorf("create assistant: %w", err)
	}
	g, err := ai.GenerateAssignment(ctx, ids, model.QuizType(v.GetString("quiz-type")), v.GetString("instructions"))
	if err != nil {
		if kind, ok := llm.KindOf(err); ok {
			slog.Error(kind.Message())
		}
		return err
	}
	slog.Info("generated assignment", "title", g.Title, "questions", len(g.Questions))
	return writeJSONOutput(v.GetString("output"), g)
}

func writeJSONOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or COURSEMATE_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
