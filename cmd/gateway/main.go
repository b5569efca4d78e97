// Package main is the CLI entry point for the gateway — a transparent
// HTTP reverse proxy that sits between an Anthropic Messages
// API-speaking client and a pool of upstream LLM providers, some of
// which may only speak the OpenAI Chat Completions dialect.
//
// Architecture overview:
//
//	client --> gateway (:9066, /claude/) --> upstream LLM provider
//	            |-- classify request (quota probe, title gen, ...)
//	            |-- intercept locally or rewrite + select + translate
//	            +-- forward, relaying streamed or buffered response
//
// CLI contract: `gateway [config-path]`, defaulting to ./config.toml.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ctrlai/llmgate/internal/config"
	"github.com/ctrlai/llmgate/internal/gatewayhttp"
	"github.com/ctrlai/llmgate/internal/selector"
	"github.com/ctrlai/llmgate/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultListenAddr = "0.0.0.0:9066"

var rootCmd = &cobra.Command{
	Use:   "gateway [config-path]",
	Short: "gateway — reverse proxy between an Anthropic-dialect client and a pool of upstream LLM providers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := "./config.toml"
		if len(args) == 1 {
			configPath = args[0]
		}
		return run(configPath)
	},
}

// configError marks a startup failure in loading or validating the
// config file, per spec.md §6's exit code 2.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func main() {
	setupLogging()
	if err := rootCmd.Execute(); err != nil {
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// setupLogging installs the process-wide slog handler: text by default,
// JSON when GATEWAY_LOG_FORMAT=json — the same env/flag-driven bootstrap
// concern the teacher treats as main.go code, not library code.
func setupLogging() {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("GATEWAY_LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return &configError{err: fmt.Errorf("config load failed: %w", err)}
	}
	cell := config.NewCell(cfg)

	sel := selector.New(cell)
	registry := stats.NewRegistry(prometheus.DefaultRegisterer)

	// Tuned for low-latency LLM proxying, carried from the teacher's
	// runStart: pooled connections to a small fixed set of upstreams,
	// no client timeout since streaming replies can run for minutes.
	upstreamTransport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
	}
	upstreamClient := &http.Client{Transport: upstreamTransport}

	handler := gatewayhttp.New(gatewayhttp.Options{
		Cell:      cell,
		Selector:  sel,
		Forwarder: gatewayhttp.NewForwarder(upstreamClient),
		Stats:     registry,
	})

	mux := http.NewServeMux()
	mux.Handle("/claude/", http.StripPrefix("/claude", handler))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snap := registry.Snapshot()
		fmt.Fprintf(w, `{"total_requests":%d,"input_tokens":%d,"history_tokens":%d,"assistant_tokens":%d,"system_tokens":%d,"cache_read_tokens":%d,"cache_creation_tokens":%d,"waste_ratio":%f}`,
			snap.TotalRequests, snap.InputTokens, snap.HistoryTokens, snap.AssistantTokens,
			snap.SystemTokens, snap.CacheReadTokens, snap.CacheCreationTokens, snap.WasteRatio)
	})
	mux.Handle("/metrics", promhttp.Handler())

	shutdownCh := make(chan struct{}, 1)
	mux.HandleFunc("/shutdown", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		if !isLoopback(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"shutting_down"}`)
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
	})

	configDir := filepath.Dir(configPath)
	pidFile := filepath.Join(configDir, "gateway.pid")
	if err := writePIDFile(pidFile); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer removePIDFile(pidFile)

	watcher, err := config.NewWatcher(configPath, cell)
	if err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer watcher.Close()

	server := &http.Server{
		Addr:              defaultListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", defaultListenAddr, "config", configPath)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down (signal received)")
	case <-shutdownCh:
		slog.Info("shutting down (POST /shutdown received)")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile(path string) {
	os.Remove(path)
}

// isLoopback reports whether remoteAddr ("ip:port") is ::1 or any
// 127.x.x.x address —
// used to restrict the /shutdown endpoint to local-only callers.
func isLoopback(remoteAddr string) bool {
	host := remoteAddr
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		host = remoteAddr[:idx]
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	return host == "127.0.0.1" || host == "::1" || strings.HasPrefix(host, "127.")
}
