// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command insights starts the Aleutian Insights API server.
//
// Aleutian Insights answers natural-language questions over query results:
//   - Parses opaque stringified query output into typed rows
//   - Classifies whether a question wants a chart, and which kind
//   - Synthesizes ECharts-style declarative chart specs, with a
//     deterministic local fallback when the model misbehaves
//   - Keeps per-session conversation memory with rolling summaries
//   - Accepts spreadsheet uploads (.xlsx/.csv) per session
//
// Usage:
//
//	go run ./cmd/insights
//	go run ./cmd/insights -port 9090 -config insights.yaml
//
// With a local Ollama backend:
//
//	OLLAMA_BASE_URL=http://localhost:11434 OLLAMA_MODEL=llama3.1:8b go run ./cmd/insights
//
// With OpenAI:
//
//	OPENAI_API_KEY=sk-... OPENAI_MODEL=gpt-4o-mini go run ./cmd/insights
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/insights/health
//
//	# Ask a question over query results
//	curl -X POST http://localhost:8080/v1/insights/ask \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "show a bar chart of EVs per county",
//	       "query": "SELECT County, COUNT(*) AS total FROM EVs GROUP BY County",
//	       "result": "[('\''King'\'', 5000), ('\''Pierce'\'', 3000)]"}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianInsights/services/insights"
	"github.com/AleutianAI/AleutianInsights/services/insights/completion"
	"github.com/AleutianAI/AleutianInsights/services/insights/config"
	"github.com/AleutianAI/AleutianInsights/services/insights/memory"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (embedded defaults otherwise)")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.ListenAddr = fmt.Sprintf(":%d", *port)
	}

	// W3C TraceContext propagation so trace context flows from incoming
	// headers through all handlers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if cfg.Telemetry.StdoutTraces {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			slog.Error("Failed to create trace exporter", slog.String("error", err.Error()))
			os.Exit(1)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
	}

	// Conversation memory BadgerDB. In-memory mode keeps sessions only
	// for the life of the process.
	opts := badger.DefaultOptions(cfg.Memory.DataDir).WithLogger(nil)
	if cfg.Memory.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("Failed to open conversation store",
			slog.String("path", cfg.Memory.DataDir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := memory.NewStore(db, slog.Default())
	if err != nil {
		slog.Error("Failed to create conversation store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var complete completion.Client
	if cfg.Completion.Provider == "auto" {
		complete, err = completion.NewClientFromEnv()
	} else {
		complete, err = completion.NewClient(cfg.Completion.Provider)
	}
	if err != nil {
		slog.Error("Failed to create completion client",
			slog.String("provider", cfg.Completion.Provider),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc, err := insights.NewService(complete, store, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to create insights service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	handlers := insights.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-insights"))
	if *debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	insights.RegisterRoutes(v1, handlers)

	printBanner(cfg.Server.ListenAddr)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run the server and the signal watcher together; either one ending
	// drains the other before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting Aleutian Insights server", slog.String("address", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down Aleutian Insights server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server terminated", slog.String("error", err.Error()))
		if closeErr := db.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation store", slog.String("error", closeErr.Error()))
		}
		os.Exit(1)
	}
	if err := db.Close(); err != nil {
		slog.Warn("Failed to close conversation store", slog.String("error", err.Error()))
	}
}

func printBanner(addr string) {
	fmt.Printf(`
 Aleutian Insights
 ------------------
 Listening on %s

 POST /v1/insights/ask
 POST /v1/insights/spreadsheet/upload
 GET  /v1/insights/spreadsheet/:session
 GET  /v1/insights/health
 GET  /metrics

`, addr)
}
