package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/config"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/disposable"
)

// runRefreshDomainsCmd rebuilds the shared disposable-domain set once.
// It needs Redis: refreshing an in-process set from a short-lived command
// would be thrown away on exit.
func runRefreshDomainsCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("refresh-domains", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "refresh-domains: %v\n", err)
		return 1
	}
	if cfg.CacheURL == "" {
		fmt.Fprintln(stderr, "Error: CACHE_URL must be set; without Redis the refreshed set dies with this command")
		return 2
	}

	client, err := cache.Connect(cfg.CacheURL)
	if err != nil {
		fmt.Fprintf(stderr, "refresh-domains: %v\n", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	refresher := disposable.NewRefresher(cache.NewRedisSet(client, disposableSetName), cfg.DisposableListURL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := refresher.Refresh(ctx); err != nil {
		fmt.Fprintf(stderr, "refresh-domains: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "disposable domain set refreshed")
	return 0
}
