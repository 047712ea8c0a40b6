package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatrelay/pkg/catalog"
	"chatrelay/pkg/config"
	"chatrelay/pkg/gateway"
	"chatrelay/pkg/server"
	"chatrelay/pkg/usage"
)

func main() {
	root := &cobra.Command{
		Use:          "chatrelay",
		Short:        "Streaming conversation backend for the embedded site assistant",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), toolsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
			slog.SetDefault(log)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store := config.NewStore(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch {
				if err := config.Watch(ctx, configPath, store, log); err != nil {
					return fmt.Errorf("failed to watch config: %w", err)
				}
			}

			var recorder *usage.Recorder
			if cfg.UsageDB != "" {
				recorder, err = usage.Open(cfg.UsageDB)
				if err != nil {
					return err
				}
				defer recorder.Close()
			}

			cat := catalog.Default()
			gw, err := gateway.New(gateway.Config{
				Store:   store,
				Catalog: cat,
				Logger:  log,
			})
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				Gateway: gw,
				Catalog: cat,
				Store:   store,
				Usage:   recorder,
				Logger:  log,
			})

			httpSrv := &http.Server{
				Addr:    cfg.Listen,
				Handler: srv.Routes(),
				// No write timeout: responses stream for as long as the
				// model generates; callers impose their own deadlines.
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("listening", "addr", cfg.Listen)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "chatrelay.yaml", "path to config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the config file on change")
	return cmd
}

func toolsCmd() *cobra.Command {
	var providerName string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.Default()
			if providerName == "" {
				fmt.Println(catalog.Format(cat.List()))
				return nil
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cat.ForProvider(providerName))
		},
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "render the wire shape for a provider (anthropic, openai, gemini)")
	return cmd
}
