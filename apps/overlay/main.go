package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"landlord-lens/apps/overlay/internal/conf"
	"landlord-lens/apps/overlay/internal/gateway"
	"landlord-lens/apps/overlay/internal/ledger"
	"landlord-lens/vision"
	"landlord-lens/watcher"

	"github.com/arl/statsviz"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "overlay",
	Short: "overlay 记牌器后台",
	Long:  `overlay 记牌器后台：盯屏识牌，向展示进程推送计数`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "configFile", "", "resource file")
	rootCmd.MarkFlagRequired("configFile")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error happen: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *log.Logger {
	logger := log.New(os.Stdout)
	logger.SetPrefix("overlay")
	logger.SetReportTimestamp(true)
	logger.SetTimeFormat(time.DateTime)

	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

func run() error {
	cfg, err := conf.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.LogConf.Level)
	logger.Info("config loaded", "file", configFile, "display", cfg.Display)

	bank, err := vision.LoadTemplates(cfg.TemplateDir)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	defer bank.Close()

	screen, err := vision.NewScreen(cfg.Display, cfg.Layout(), bank,
		cfg.VisionThresholds(), cfg.Background.Gray, cfg.Background.Tolerance, logger)
	if err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Close()
	cfg.WatchThresholds(func(th vision.Thresholds) {
		screen.SetThresholds(th)
		logger.Info("thresholds reloaded", "pass", th.Pass, "wait", th.Wait,
			"landlord", th.Landlord, "card", th.Card, "endGame", th.EndGame)
	})

	ledgerSvc, ledgerMode, err := ledger.NewService(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer ledgerSvc.Close()
	logger.Info("ledger ready", "mode", ledgerMode)

	counter := watcher.NewCounter(logger)
	session, err := watcher.NewSession(cfg.WatcherConfig(), screen, counter, logger)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	sessionID := uuid.NewString()
	session.OnRoundEnd = func(res watcher.RoundResult) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := ledgerSvc.RecordRound(ctx, ledger.FromResult(sessionID, res)); err != nil {
			logger.Error("record round failed", "round", res.Round, "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricPort > 0 {
		go func() {
			metricMux := http.NewServeMux()
			if err := statsviz.Register(metricMux); err != nil {
				logger.Error("register statsviz failed", "err", err)
				return
			}
			addr := fmt.Sprintf("0.0.0.0:%d", cfg.MetricPort)
			logger.Info("metrics endpoint up", "url", fmt.Sprintf("http://localhost:%d/debug/statsviz/", cfg.MetricPort))
			if err := http.ListenAndServe(addr, metricMux); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	go func() {
		if err := session.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("session stopped", "err", err)
			stop()
		}
	}()

	gw := gateway.New(session, counter, logger)
	go gw.Run(ctx, cfg.GuiUpdateInterval())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/counts", gw.HandleCounts)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	ledger.NewHTTPHandler(ledgerSvc, logger).RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddr, "session", sessionID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown", "err", err)
	}
	return nil
}
