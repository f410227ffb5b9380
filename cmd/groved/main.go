// Command groved starts the grove server: an embedded, authenticated,
// graph-structured record store reachable over a length-prefixed TCP
// protocol (spec.md §6).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/grovedb/grove/internal/auth"
	"github.com/grovedb/grove/internal/core"
	"github.com/grovedb/grove/internal/dispatch"
	"github.com/grovedb/grove/internal/store"
	"github.com/grovedb/grove/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	addr := flag.String("addr", ":7420", "listen address")
	dataDir := flag.String("data-dir", "./grove-data", "mdbx environment directory")
	macKey := flag.String("mac-key", "", "process-wide token MAC key, at least 32 bytes (required)")
	accessTTL := flag.Duration("access-ttl", token.DefaultTTL, "access/refresh token TTL")
	mapSizeMB := flag.Int("map-size-mb", 64, "mdbx map size in MiB")
	maxReaders := flag.Int("max-readers", 0, "mdbx max concurrent readers (0 = mdbx default)")
	dev := flag.Bool("dev", false, "enable verbose development logging")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if len(*macKey) < 32 {
		logger.Fatal("missing or too-short mac key (--mac-key, >=32 bytes)")
	}

	tokens, err := token.NewService([]byte(*macKey), *accessTTL)
	if err != nil {
		logger.Fatal("token.NewService", zap.Error(err))
	}

	st, err := store.Open(store.Config{
		Dir:          *dataDir,
		MapSizeBytes: int64(*mapSizeMB) << 20,
		MaxReaders:   *maxReaders,
	}, logger)
	if err != nil {
		logger.Fatal("store.Open", zap.Error(err))
	}
	defer st.Close()

	engine := auth.NewEngine(st, tokens, logger)
	c := core.New(tokens, engine, st, logger)
	router := dispatch.NewRouter(c)
	srv := dispatch.NewServer(router, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(*addr)
	}()

	select {
	case <-ctx.Done():
		if err := srv.Close(); err != nil {
			logger.Warn("listener close", zap.Error(err))
		}
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
