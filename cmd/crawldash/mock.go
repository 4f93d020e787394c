package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"crawldash/internal/mockapi"
	"crawldash/internal/storage"
)

func (a *app) mockCommand() *cobra.Command {
	var runDuration time.Duration
	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Serve an in-memory backend for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AuthToken == "" {
				return errors.New("mock-api needs auth_token to check requests against")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			gin.SetMode(gin.ReleaseMode)
			backend := mockapi.New(mockapi.Options{Token: a.cfg.AuthToken, RunDuration: runDuration}, a.log)
			srv := &http.Server{
				Addr:              a.cfg.MockAddr,
				Handler:           backend.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("addr", srv.Addr).Info("Mock API listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("mock api stopped: %w", err)
			case <-ctx.Done():
			}

			a.log.Info("Shutting down mock API...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("mock api shutdown: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (default mock_addr)")
	if err := a.v.BindPFlag("mock_addr", cmd.Flags().Lookup("addr")); err != nil {
		panic(fmt.Sprintf("bind flag addr: %v", err))
	}
	cmd.Flags().DurationVar(&runDuration, "run-duration", 3*time.Second, "how long a started crawl runs before it completes, 0 to never complete")
	return cmd
}

func (a *app) cacheCommand() *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local snapshot cache",
	}
	cache.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the cached snapshot and preferences for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.CachePath == "" {
				return errors.New("cache is disabled (cache_path is empty)")
			}
			c, err := storage.NewBadgerCache(a.cfg.CachePath, a.log)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Forget(cmd.Context(), a.cfg.APIBase)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached entries for %s\n", n, a.cfg.APIBase)
			return nil
		},
	})
	return cache
}
