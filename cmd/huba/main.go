package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Warrelis/huba/internal/client"
	corecfg "github.com/Warrelis/huba/internal/core/config"
	"github.com/Warrelis/huba/internal/fanout"
	"github.com/Warrelis/huba/internal/ingestion"
	"github.com/Warrelis/huba/internal/node"
	"github.com/Warrelis/huba/internal/query"
	"github.com/Warrelis/huba/internal/server"
	"github.com/Warrelis/huba/internal/store"
)

func main() {
	configPath := flag.String("config", "huba.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"role", cfg.Node.Role,
		"addr", fmtAddr(cfg.Server.Host, cfg.Server.Port),
		"children", len(cfg.Children),
	)

	// 2. Build the node for the configured tier
	n, err := buildNode(cfg)
	if err != nil {
		slog.Error("Failed to build node", "role", cfg.Node.Role, "error", err)
		os.Exit(1)
	}

	// 3. Initialize Ingestion and Query services
	ingestionSvc := ingestion.NewService(n, cfg.Server.MaxBodySizeMB)
	querySvc := query.NewService(n)

	// 4. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), n, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	querySvc.RegisterRoutes(srv.Engine)

	// 5. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func buildNode(cfg *corecfg.Config) (node.Node, error) {
	switch cfg.Node.Role {
	case node.RoleLeaf:
		return node.NewLeaf(store.New()), nil
	case node.RoleAggregator, node.RoleRoot:
		httpClient := client.NewHTTP(cfg.Fanout.ChildTimeoutDuration())
		coord := fanout.New(
			cfg.Children,
			httpClient,
			cfg.Fanout.ChildTimeoutDuration(),
			cfg.Fanout.FailurePolicy,
		)
		if cfg.Node.Role == node.RoleRoot {
			return node.NewRoot(coord, httpClient), nil
		}
		return node.NewAggregator(coord, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown node role %q", cfg.Node.Role)
	}
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
