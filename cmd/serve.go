package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/driftcove/driftcove/internal/config"
	"github.com/driftcove/driftcove/internal/dependency"
	"github.com/driftcove/driftcove/internal/heartbeat"
	"github.com/driftcove/driftcove/internal/schema"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the driftcove runtime",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Broadcast gateway port (overrides config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort > 0 {
		cfg.Gateway.Port = servePort
	}

	c, err := dependency.New(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("%s Starting driftcove runtime...\n", logo)

	// Enable every plugin the operator turned on.
	startCtx := context.Background()
	for id, pc := range cfg.Plugins.Plugins {
		if !pc.Enabled {
			continue
		}
		if err := c.Host().Enable(startCtx, id); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: plugin %s failed to enable: %v\n", id, err)
		}
	}

	// Launch configured external servers.
	for name, sc := range cfg.Broker.Servers {
		if !sc.AutoStart {
			continue
		}
		if err := c.Broker().StartServer(startCtx, name); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: server %s failed to start: %v\n", name, err)
		}
	}

	c.Host().ExecuteHooks(startCtx, schema.HookSystemStartup, map[string]any{
		"version": version,
	}, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/events", c.Hub())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler: mux,
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return c.SyncScheduler().Start(gctx) })

	hb := heartbeat.NewService(c.Host(), time.Duration(cfg.Heartbeat.IntervalMinutes)*time.Minute)
	g.Go(func() error { return hb.Start(gctx) })

	fmt.Printf("%s Runtime running on :%d. Press Ctrl+C to stop.\n", logo, cfg.Gateway.Port)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
	}

	// Orderly teardown: notify, disable plugins, stop servers, drop observers.
	endCtx := context.Background()
	c.Host().ExecuteHooks(endCtx, schema.HookSystemShutdown, nil, false)
	c.Host().ShutdownAll(endCtx)
	if err := c.Broker().Close(); err != nil {
		fmt.Fprintf(os.Stderr, "broker teardown: %v\n", err)
	}
	c.Hub().Close()

	fmt.Println("\nShutdown complete.")
	return nil
}
