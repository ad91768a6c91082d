package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/api"
	"github.com/seiyelan/raidhelper/internal/app"
	"github.com/seiyelan/raidhelper/internal/cache"
	"github.com/seiyelan/raidhelper/internal/chat"
	"github.com/seiyelan/raidhelper/internal/commands"
	"github.com/seiyelan/raidhelper/internal/conversation"
	"github.com/seiyelan/raidhelper/internal/database"
	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/internal/notify"
	"github.com/seiyelan/raidhelper/internal/question"
	"github.com/seiyelan/raidhelper/internal/services"
	"github.com/seiyelan/raidhelper/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("raidhelper-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	store := selectCacheStore(cfg, db, log)
	defer func() {
		if rs, ok := store.(*cache.RedisStore); ok && rs != nil {
			_ = rs.Close()
		}
	}()

	driver := conversation.New(
		conversation.WithRetryBudget(cfg.Bot.MaxRetry),
		conversation.WithPromptTimeout(cfg.Bot.PromptTimeout),
		conversation.WithMessageDelay(cfg.Bot.MessageInterval),
		conversation.WithExitKeyword(cfg.Bot.ExitKeyword),
	)

	activities, err := services.NewActivityService(db)
	if err != nil {
		return fmt.Errorf("initialise activity service: %w", err)
	}
	blacklist, err := services.NewBlacklistService(db)
	if err != nil {
		return fmt.Errorf("initialise blacklist service: %w", err)
	}
	exempt, err := services.NewExemptService(db)
	if err != nil {
		return fmt.Errorf("initialise exempt service: %w", err)
	}

	// The gateway is both the inbound message source and the outbound
	// sender; the hub is wired below once the router exists.
	var hub *chat.Hub
	gateway := chat.NewGateway(func(ctx context.Context, msg chat.Message) {
		hub.Dispatch(ctx, msg)
	})

	dispatcher, err := notify.NewDispatcher(db, gateway, store,
		notify.WithSendDelay(cfg.Notify.SendDelay),
		notify.WithReminderWindows(cfg.Notify.ReminderWindows...),
		notify.WithNoticeChannels(noticeChannels(cfg)))
	if err != nil {
		return fmt.Errorf("initialise dispatcher: %w", err)
	}

	signups, err := services.NewSignupService(db, driver, blacklist, exempt,
		sheetBuilder(cfg),
		services.WithLeaderAlert(leaderAlert(dispatcher)))
	if err != nil {
		return fmt.Errorf("initialise signup service: %w", err)
	}

	router, err := commands.NewRouter(activities, signups, blacklist, exempt,
		dispatcher, driver, commandGroups(cfg))
	if err != nil {
		return fmt.Errorf("initialise command router: %w", err)
	}

	hub = chat.NewHub(gateway, func(ctx context.Context, sess chat.Session, msg chat.Message) {
		if err := router.Handle(ctx, sess, msg); err != nil {
			logger.WithModule("commands").Error("command handling failed", zap.Error(err))
		}
	})

	scheduler := notify.NewScheduler(dispatcher,
		notify.WithFlushSpec(cfg.Notify.FlushSpec))
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start notification scheduler: %w", err)
	}
	defer func() {
		stopCtx := scheduler.Stop()
		if err := dispatcher.Flush(stopCtx); err != nil {
			log.Warn("final batch flush failed", zap.Error(err))
		}
	}()

	engine, err := api.NewRouter(api.Deps{
		Gateway:    gateway,
		Activities: activities,
		Signups:    signups,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(convertDatabaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	out := database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	}
	switch strings.ToLower(cfg.Database.Driver) {
	case "postgres":
		out.Host = cfg.Database.Postgres.Host
		out.Port = cfg.Database.Postgres.Port
		out.Name = cfg.Database.Postgres.Database
		out.User = cfg.Database.Postgres.Username
		out.Password = cfg.Database.Postgres.Password
	case "mysql":
		out.Host = cfg.Database.MySQL.Host
		out.Port = cfg.Database.MySQL.Port
		out.Name = cfg.Database.MySQL.Database
		out.User = cfg.Database.MySQL.Username
		out.Password = cfg.Database.MySQL.Password
	}
	return out
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to access underlying database", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

// selectCacheStore prefers Redis when configured and reachable; the
// database-backed store covers everything else.
func selectCacheStore(cfg *app.Config, db *gorm.DB, log *zap.Logger) cache.Store {
	if cfg.Cache.Redis.Enabled {
		store, err := cache.NewRedisStore(cache.RedisConfig{
			Address:  cfg.Cache.Redis.Address,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Timeout:  cfg.Cache.Redis.Timeout,
		})
		if err != nil {
			log.Warn("redis unavailable; using database-backed cache", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			return store
		}
	}
	return cache.NewDatabaseStore(db)
}

// sheetBuilder maps group names onto their questionnaire.
func sheetBuilder(cfg *app.Config) services.SheetFunc {
	return func(groupName string) ([]*question.Question, error) {
		group, ok := cfg.Groups[groupName]
		if !ok {
			return nil, fmt.Errorf("no configuration for group %s", groupName)
		}
		return question.RaidSheet(group.Worlds)
	}
}

// leaderAlert delivers blacklist hits and contact messages straight to the
// activity leader.
func leaderAlert(dispatcher *notify.Dispatcher) services.LeaderAlertFunc {
	return func(ctx context.Context, activity *models.Activity, text string) {
		if err := dispatcher.Alert(ctx, activity.LeaderID, text); err != nil {
			logger.WithModule("notify").Warn("leader alert failed",
				zap.String("activity_id", activity.ID),
				zap.Error(err))
		}
	}
}

func noticeChannels(cfg *app.Config) map[string][]string {
	channels := make(map[string][]string, len(cfg.Groups))
	for name, group := range cfg.Groups {
		if group.ChannelID != "" {
			channels[name] = []string{group.ChannelID}
		}
	}
	return channels
}

func commandGroups(cfg *app.Config) map[string]commands.GroupConfig {
	groups := make(map[string]commands.GroupConfig, len(cfg.Groups))
	for name, group := range cfg.Groups {
		groups[name] = commands.GroupConfig{
			ChannelID: group.ChannelID,
			Leaders:   group.Leaders,
			Worlds:    group.Worlds,
		}
	}
	return groups
}
