package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"crawldash/internal/actions"
	"crawldash/internal/dashboard"
	"crawldash/internal/records"
	"crawldash/internal/render"
	"crawldash/internal/storage"
	"crawldash/internal/view"
)

// controller builds a dashboard controller for a one-shot command. The poller
// is never activated; commands refresh explicitly.
func (a *app) controller() (*dashboard.Controller, error) {
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	return dashboard.New(dashboard.Options{
		PollInterval:   a.cfg.PollInterval,
		SearchDebounce: a.cfg.SearchDebounce,
		Preferences:    view.Preferences{PageSize: a.cfg.PageSize},
	}, dashboard.Deps{
		Client:  client,
		Store:   records.NewStore(),
		Limiter: actions.NewLimiter(a.cfg.BulkRate),
		Logger:  a.log,
	}), nil
}

// --- list ---

func (a *app) listCommand() *cobra.Command {
	var (
		status   string
		query    string
		sortSpec string
		page     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := view.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			srt, err := view.ParseSort(sortSpec)
			if err != nil {
				return err
			}
			client, err := a.newClient()
			if err != nil {
				return err
			}

			recs, err := client.ListURLs(cmd.Context())
			if err != nil {
				cached, cacheErr := a.cachedSnapshot(cmd.Context())
				if cacheErr != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Backend unavailable (%v), showing snapshot cached at %s\n",
					err, cached.SavedAt.Local().Format(time.RFC3339))
				recs = cached.Records
			}

			st := view.NewState(a.cfg.PageSize)
			st.Status, st.Query, st.Sort = filter, query, srt
			st = st.Apply(view.GoToPage{Index: page - 1}, recs)
			render.NewTableRenderer(cmd.OutOrStdout()).RenderList(st.Derive(recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "all", "status filter (all, queued, running, done, error)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive search on title or URL")
	cmd.Flags().StringVar(&sortSpec, "sort", "", "sort column, optionally suffixed with :asc or :desc (e.g. created_at:desc)")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	return cmd
}

// cachedSnapshot reads the last snapshot saved by the dashboard for this backend.
func (a *app) cachedSnapshot(ctx context.Context) (storage.CachedSnapshot, error) {
	if a.cfg.CachePath == "" {
		return storage.CachedSnapshot{}, storage.ErrNotFound
	}
	cache, err := storage.NewBadgerCache(a.cfg.CachePath, a.log)
	if err != nil {
		return storage.CachedSnapshot{}, err
	}
	defer cache.Close()
	return cache.LoadSnapshot(ctx, a.cfg.APIBase)
}

// --- add / start / delete ---

func (a *app) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "Submit a URL for crawling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.controller()
			if err != nil {
				return err
			}
			defer ctrl.Deactivate()

			if err := ctrl.Add(cmd.Context(), args[0]); err != nil {
				a.log.WithError(err).Debug("Add failed")
				return errors.New(dashboard.InlineError(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "URL added")
			return nil
		},
	}
}

func (a *app) startCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>...",
		Short: "Start crawls for queued URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAction(cmd, args, "started", (*dashboard.Controller).Start, (*dashboard.Controller).BulkStart)
		},
	}
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete URLs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAction(cmd, args, "deleted", (*dashboard.Controller).Delete, (*dashboard.Controller).BulkDelete)
		},
	}
}

// runAction sends one request per id. Several ids go through the bulk path
// so they are paced and followed by a single refresh.
func (a *app) runAction(
	cmd *cobra.Command,
	args []string,
	verb string,
	single func(*dashboard.Controller, context.Context, int64) error,
	bulk func(*dashboard.Controller, context.Context) actions.BulkResult,
) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	ctrl, err := a.controller()
	if err != nil {
		return err
	}
	defer ctrl.Deactivate()

	ctx := cmd.Context()
	if err := ctrl.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load URLs: %w", err)
	}
	out := cmd.OutOrStdout()

	if len(ids) == 1 {
		if err := single(ctrl, ctx, ids[0]); err != nil {
			return fmt.Errorf("#%d: %w", ids[0], err)
		}
		fmt.Fprintf(out, "%s #%d\n", verb, ids[0])
		return nil
	}

	for _, id := range ids {
		if _, ok := ctrl.Lookup(id); !ok {
			return fmt.Errorf("#%d: %w", id, actions.ErrUnknownRecord)
		}
		ctrl.ToggleSelect(id)
	}
	result := bulk(ctrl, ctx)
	printBulk(out, verb, result)
	return result.Err()
}

func printBulk(out io.Writer, verb string, r actions.BulkResult) {
	for _, id := range r.Succeeded {
		fmt.Fprintf(out, "%s #%d\n", verb, id)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(out, "failed #%d: %v\n", f.ID, f.Err)
	}
}

// parseIDs parses positive ids and drops duplicates, keeping the first occurrence.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// --- detail ---

func (a *app) detailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detail <id>",
		Short: "Show the crawl results for one URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctrl, err := a.controller()
			if err != nil {
				return err
			}
			defer ctrl.Deactivate()

			ctx := cmd.Context()
			if err := ctrl.Refresh(ctx); err != nil {
				return fmt.Errorf("failed to load URLs: %w", err)
			}
			rec, ok := ctrl.Lookup(ids[0])
			if !ok {
				return fmt.Errorf("#%d: %w", ids[0], actions.ErrUnknownRecord)
			}
			st, err := ctrl.Detail(ctx, rec.ID)
			if err != nil {
				return fmt.Errorf("failed to load details: %w", err)
			}
			render.NewTableRenderer(cmd.OutOrStdout()).RenderDetail(rec, st)
			return nil
		},
	}
}
