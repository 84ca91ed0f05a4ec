package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/config"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/lifecycle"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/logging"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/notify"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/scoring"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/server"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
)

var (
	configPath string
	transport  string
	port       string
	dataDir    string
	logLevel   string

	scoreTitle       string
	scoreDescription string
	scoreTags        []string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "cocoon-mcp",
	Short:         "Dream scoring and cocoon lifecycle service over MCP",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("transport") {
			cfg.Transport.Mode = transport
		}
		if cmd.Flags().Changed("port") {
			cfg.Transport.Port = port
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = dataDir
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio or streamable HTTP",
	RunE:  runServe,
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score content and print the result as JSON",
	Example: `  cocoon-mcp score --title "AI Music Generator" \
    --description "A revolutionary neural network system that creates music" \
    --tag ai --tag music --tag technology`,
	RunE: runScore,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "cocoon.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	serveCmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	serveCmd.Flags().StringVar(&port, "port", "8081", "HTTP port (only used with --transport http)")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for the SQLite database")

	scoreCmd.Flags().StringVar(&scoreTitle, "title", "", "Title to score")
	scoreCmd.Flags().StringVar(&scoreDescription, "description", "", "Description to score")
	scoreCmd.Flags().StringSliceVar(&scoreTags, "tag", nil, "Tag to score (repeatable)")

	rootCmd.AddCommand(serveCmd, scoreCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	dispatcher := notify.NewDispatcher(store, cfg.Notify.Buffer, logger.Named("notify"))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dispatcher.Close(ctx); err != nil {
			logger.Warn("notification queue not drained", zap.Error(err))
		}
	}()

	engine := lifecycle.New(store,
		lifecycle.WithLogger(logger.Named("lifecycle")),
		lifecycle.WithPublisher(dispatcher),
	)
	srv := server.New(engine, store)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cfg.Transport.Mode {
	case "stdio":
		logger.Info("cocoon MCP server starting", zap.String("transport", "stdio"), zap.String("data_dir", cfg.DataDir))
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case "http":
		return serveHTTP(ctx, srv)
	default:
		return fmt.Errorf("unknown transport: %s (use stdio or http)", cfg.Transport.Mode)
	}
}

func serveHTTP(ctx context.Context, srv *mcp.Server) error {
	mux := http.NewServeMux()
	if cfg.Transport.MetricsPath != "" {
		mux.Handle(cfg.Transport.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return srv
	}, nil))

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Transport.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("cocoon MCP server listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("metrics", cfg.Transport.MetricsPath))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runScore(cmd *cobra.Command, _ []string) error {
	if scoreTitle == "" && scoreDescription == "" {
		return fmt.Errorf("--title or --description is required")
	}
	res := scoring.Evaluate(scoring.Content{
		Title:       scoreTitle,
		Description: scoreDescription,
		Tags:        scoreTags,
	})
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
