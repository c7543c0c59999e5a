package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"

	"animeai/internal/adapters/backend"
	emailPkg "animeai/internal/adapters/email"
	web "animeai/internal/adapters/http"
	"animeai/internal/adapters/http/perf"
	"animeai/internal/adapters/storage"
	handoffStore "animeai/internal/adapters/storage/handoff"
	visitorStore "animeai/internal/adapters/storage/visitor"
	"animeai/internal/adapters/stubbackend"
	"animeai/internal/config"
	"animeai/internal/domain/visitor"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// shutdownTimeout bounds graceful shutdown of each server.
const shutdownTimeout = 10 * time.Second

// sweepInterval is how often expired slots and idle visitors are removed.
const sweepInterval = 5 * time.Minute

var (
	configPath string
	withStub   bool
	verbose    bool
	stubAddr   string
)

var rootCmd = &cobra.Command{
	Use:           "animeai",
	Short:         "AnimeAI web frontend",
	Long:          "Serves the AnimeAI pages and talks to the recommendation backend on each visitor's behalf.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

var stubCmd = &cobra.Command{
	Use:   "stub-backend",
	Short: "Run only the stub recommendation backend",
	RunE:  runStubOnly,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "animeai.yaml", "YAML config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&withStub, "stub", false, "Also run the stub backend and point the frontend at it")
	stubCmd.Flags().StringVar(&stubAddr, "addr", "", "Listen address (default: stub.addr from config)")

	rootCmd.AddCommand(stubCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads, validates and applies the logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if withStub {
		cfg.Stub.Enabled = true
	}
	if cfg.Stub.Enabled {
		cfg.Backend.BaseURL = "http://" + cfg.Stub.Addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	setupLogger(cfg.IsProduction())
	return cfg, nil
}

// setupLogger installs the default slog handler: JSON in production, text
// otherwise, at DEBUG when --verbose is set.
func setupLogger(production bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if production {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
}

// openDB opens the SQLite database with WAL mode, foreign keys and a busy
// timeout, then brings the schema up to date.
func openDB(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.MigrateDB(db, path); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, storage.DefaultSlowQuery)

	stores := &web.Stores{
		Handoff:  handoffStore.NewSQLiteStore(timedDB),
		Visitors: visitorStore.NewSQLiteStore(timedDB),
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.BackendTimeout(),
	}, stores.Visitors, collector)
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}
	defer client.Close()

	csrfKey, err := cfg.DeriveKey(config.PurposeCSRF)
	if err != nil {
		return err
	}
	visitorKey, err := cfg.DeriveKey(config.PurposeVisitor)
	if err != nil {
		return err
	}

	handler := web.NewMux(stores, client, collector, web.Options{
		Production:         cfg.IsProduction(),
		CSRFKey:            csrfKey,
		VisitorKey:         visitorKey,
		TrustedOrigins:     cfg.TrustedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		SlowRequest:        cfg.SlowRequestThreshold(),
		Welcome:            newWelcomer(cfg),
		DB:                 timedDB,
		Context:            ctx,
	})

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Stub.Enabled {
		stubHandler, err := newStubHandler(cfg)
		if err != nil {
			return err
		}
		serve(gctx, g, "stub_backend", &http.Server{Addr: cfg.Stub.Addr, Handler: stubHandler, ReadHeaderTimeout: 10 * time.Second})
	}
	serve(gctx, g, "web", &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second})
	g.Go(func() error {
		runSweeper(gctx, stores)
		return nil
	})

	slog.Info("server_starting",
		"version", version,
		"addr", cfg.Addr,
		"env", cfg.Env,
		"backend", client.BaseURL(),
		"stub", cfg.Stub.Enabled,
		"schema", storage.LatestSchemaVersion(),
	)
	return g.Wait()
}

func runStubOnly(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if stubAddr != "" {
		cfg.Stub.Addr = stubAddr
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := newStubHandler(cfg)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	serve(gctx, g, "stub_backend", &http.Server{Addr: cfg.Stub.Addr, Handler: h, ReadHeaderTimeout: 10 * time.Second})
	slog.Info("stub_backend_starting", "addr", cfg.Stub.Addr)
	return g.Wait()
}

func newStubHandler(cfg *config.Config) (http.Handler, error) {
	secret, err := cfg.DeriveKey(config.PurposeStub)
	if err != nil {
		return nil, err
	}
	router, _ := stubbackend.NewRouter(secret, bcrypt.DefaultCost)
	return router, nil
}

// newWelcomer picks Resend when a key is configured and the logging no-op otherwise.
func newWelcomer(cfg *config.Config) *emailPkg.Welcomer {
	var sender emailPkg.Sender
	if cfg.Email.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.Email.ResendKey, cfg.Email.From)
		slog.Info("email_sender", "provider", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender", "provider", "noop", "note", "ANIMEAI_RESEND_KEY is not set, welcome mail is disabled")
		} else {
			slog.Info("email_sender", "provider", "noop")
		}
	}
	return &emailPkg.Welcomer{
		Sender:  sender,
		ReplyTo: cfg.Email.ReplyTo,
		SiteURL: cfg.SiteURL,
	}
}

// serve runs srv in g and shuts it down when ctx ends.
func serve(ctx context.Context, g *errgroup.Group, name string, srv *http.Server) {
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("server_stopping", "server", name)
		return srv.Shutdown(shutdownCtx)
	})
}

// runSweeper deletes expired handoff slots and idle visitors until ctx ends.
func runSweeper(ctx context.Context, stores *web.Stores) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, stores, time.Now())
		}
	}
}

func sweep(ctx context.Context, stores *web.Stores, now time.Time) {
	slots, err := stores.Handoff.DeleteExpired(ctx, now)
	if err != nil {
		slog.Warn("sweep_failed", "target", "handoff", "error", err)
	}
	idle, err := stores.Visitors.DeleteIdle(ctx, now.Add(-visitor.IdleTimeout))
	if err != nil {
		slog.Warn("sweep_failed", "target", "visitor", "error", err)
	}
	if slots > 0 || idle > 0 {
		slog.Info("sweep_done", "expired_slots", slots, "idle_visitors", idle)
	}
}
