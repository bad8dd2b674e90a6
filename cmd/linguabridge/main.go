// Linguabridge is a translation relay bot: users send text or voice notes,
// the bot detects the language, translates it along the configured routes
// and answers with the translation as text and as speech.
//
// Usage:
//
//	linguabridge [flags]
//	linguabridge --config /path/to/linguabridge.yaml
//	linguabridge languages
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nadzzz/linguabridge/docs"
	"github.com/nadzzz/linguabridge/internal/config"
	"github.com/nadzzz/linguabridge/internal/health"
	"github.com/nadzzz/linguabridge/internal/transport"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "linguabridge",
		Short: "Telegram translation relay with voice replies",
		Long: `linguabridge relays messages between languages.

Text and voice messages are transcribed, language-detected and translated
along the configured routes (by default Italian <-> Ukrainian and Russian ->
Italian). Every translation is sent back as text and as a voice note.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configFile)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/linguabridge.yaml)")
	root.AddCommand(newLanguagesCommand(&configFile))
	return root
}

func newLanguagesCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "Print the active language routing table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			policy, err := buildPolicy(cfg.Languages)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, src := range policy.Supported() {
				dst, _ := policy.Resolve(src)
				fmt.Fprintf(out, "%s (%s) -> %s (%s)\n", src, src.Name(), dst, dst.Name())
			}
			if fb := policy.Fallback(); fb != "" {
				fmt.Fprintf(out, "* -> %s (%s)\n", fb, fb.Name())
			}
			return nil
		},
	}
}

func serve(parent context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	config.SetupLogging(cfg.Logging)
	slog.Info("linguabridge starting", "version", version)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := build(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise pipeline", "error", err)
		return err
	}
	defer app.Close()

	transports := buildTransports(cfg)
	if len(transports) == 0 {
		slog.Error("enable at least one transport in config")
		return errNoTransports
	}

	healthServer := health.New(cfg.Server.HealthPort)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, app.dispatcher.Handle); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	healthServer.SetReady(true)
	slog.Info("linguabridge ready",
		"transports", len(transports),
		"routes", len(cfg.Languages.Routes),
		"health_port", cfg.Server.HealthPort)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("linguabridge stopped")
	return nil
}
