package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"crawldash/internal/actions"
	"crawldash/internal/dashboard"
	"crawldash/internal/domain"
	"crawldash/internal/notify"
	"crawldash/internal/records"
	"crawldash/internal/storage"
	"crawldash/internal/tui"
	"crawldash/internal/view"
)

const gcInterval = 10 * time.Minute

func (a *app) dashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "dashboard",
		Short:       "Open the interactive dashboard (default)",
		Annotations: map[string]string{logToFile: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDashboard(cmd)
		},
	}
}

func (a *app) runDashboard(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := a.newClient()
	if err != nil {
		return err
	}

	// --- Initialize Components ---
	store := records.NewStore()
	prefs := view.Preferences{PageSize: a.cfg.PageSize}

	cache := a.openCache()
	if cache != nil {
		defer cache.Close()
		prefs = a.restore(ctx, cache, store, prefs, cmd.Flags().Changed("page-size"))
		store.Subscribe(func(snap records.Snapshot) {
			if err := cache.SaveSnapshot(ctx, a.cfg.APIBase, snap.Records); err != nil {
				a.log.WithError(err).Warn("Failed to cache snapshot")
			}
		})
		go cache.RunGC(ctx, gcInterval)
	}

	ctrl := dashboard.New(dashboard.Options{
		PollInterval:   a.cfg.PollInterval,
		SearchDebounce: a.cfg.SearchDebounce,
		Preferences:    prefs,
	}, dashboard.Deps{
		Client:  client,
		Store:   store,
		Limiter: actions.NewLimiter(a.cfg.BulkRate),
		Logger:  a.log,
	})

	if a.cfg.NotificationsEnabled() {
		source := func() []domain.URLRecord { return store.Snapshot().Records }
		bot, err := notify.NewBot(a.cfg.TelegramBotToken, a.cfg.TelegramChatID, source, a.log)
		if err != nil {
			// The dashboard is still useful without notifications.
			a.log.WithError(err).Error("Notifications disabled")
		} else {
			notifier := notify.NewNotifier(bot, a.cfg.TelegramChatID, a.log)
			store.Subscribe(notifier.Observe)
			go notifier.Run(ctx)
			go bot.Start(ctx)
		}
	}

	// --- Application Startup ---
	a.log.Info("Starting dashboard...")
	ctrl.Activate(ctx)
	defer ctrl.Deactivate()

	program := tea.NewProgram(tui.NewModel(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()

	// --- Graceful Shutdown ---
	if cache != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := cache.SavePreferences(saveCtx, a.cfg.APIBase, ctrl.Preferences()); err != nil {
			a.log.WithError(err).Warn("Failed to save preferences")
		}
		cancel()
	}

	if runErr != nil && !(errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return runErr
	}
	a.log.Info("Dashboard closed.")
	return nil
}

// openCache returns nil when caching is disabled or the cache cannot be opened,
// e.g. because another crawldash process holds the lock.
func (a *app) openCache() *storage.BadgerCache {
	if a.cfg.CachePath == "" {
		return nil
	}
	cache, err := storage.NewBadgerCache(a.cfg.CachePath, a.log)
	if err != nil {
		a.log.WithError(err).Warn("Running without cache")
		return nil
	}
	return cache
}

// restore seeds the store from the cached snapshot and returns the saved view
// preferences. An explicit --page-size wins over the saved one.
func (a *app) restore(ctx context.Context, cache storage.Cache, store *records.Store, prefs view.Preferences, pageSizeFlag bool) view.Preferences {
	log := a.log.WithField("origin", a.cfg.APIBase)

	snap, err := cache.LoadSnapshot(ctx, a.cfg.APIBase)
	switch {
	case err == nil:
		store.Seed(snap.Records)
		log.WithField("saved_at", snap.SavedAt).Info("Seeded dashboard from cache")
	case !errors.Is(err, storage.ErrNotFound):
		log.WithError(err).Warn("Ignoring cached snapshot")
	}

	saved, err := cache.LoadPreferences(ctx, a.cfg.APIBase)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).Warn("Ignoring saved preferences")
		}
		return prefs
	}
	if pageSizeFlag || saved.PageSize <= 0 {
		saved.PageSize = prefs.PageSize
	}
	return saved
}
