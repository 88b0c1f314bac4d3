package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/api"
	"github.com/kasuganosora/basebuild/server/audit"
	"github.com/kasuganosora/basebuild/server/catalog"
	"github.com/kasuganosora/basebuild/server/config"
	dbadapter "github.com/kasuganosora/basebuild/server/db"
	"github.com/kasuganosora/basebuild/server/game/relay"
	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/kasuganosora/basebuild/server/model"
	"github.com/kasuganosora/basebuild/server/persist"
	"github.com/kasuganosora/basebuild/server/pubsub"
	"github.com/kasuganosora/basebuild/server/scheduler"
	"go.uber.org/zap"
)

const autosaveRetry = 30 * time.Second

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer dbadapter.Close(db)
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- PubSub ----
	ps, err := pubsub.New(pubsub.Config{
		RedisAddr:     cfg.PubSub.RedisAddr,
		RedisPassword: cfg.PubSub.RedisPassword,
		RedisDB:       cfg.PubSub.RedisDB,
		LocalBuf:      cfg.PubSub.LocalBuf,
	})
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	defer ps.Close()
	logger.Info("PubSub initialized", zap.Bool("redis", cfg.PubSub.RedisAddr != ""))

	// ---- World ----
	cat := catalog.Default()
	if cfg.World.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.World.CatalogPath); err != nil {
			logger.Fatal("catalog", zap.Error(err))
		}
	}
	opts := world.Options{
		Width:           cfg.World.Width,
		Height:          cfg.World.Height,
		Diagonal:        cfg.World.Diagonal,
		CharacterSpeed:  cfg.World.CharacterSpeed,
		StartFloor:      cfg.World.StartFloor,
		StartCharacters: cfg.World.StartCharacters,
	}
	w, err := world.New(opts, cat, logger)
	if err != nil {
		logger.Fatal("world", zap.Error(err))
	}
	eng := sim.New(w, logger)
	logger.Info("furniture catalog loaded", zap.Strings("types", cat.Names()))

	saves := persist.NewStore(db)
	var files *persist.FileStore
	if cfg.Snapshot.Dir != "" {
		files = persist.NewFileStore(cfg.Snapshot.Dir)
	}

	// ---- Observers ----
	rl := relay.New(ps, pubsub.EventsChannel, cfg.PubSub.RelayBuf, logger)
	rl.SkipWorked = cfg.PubSub.SkipWorked
	defer rl.Close()
	eng.Observe(rl)

	var ledger *audit.Service
	if cfg.Audit.Enabled {
		ledger = audit.New(db, audit.Options{
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
		}, logger)
		defer ledger.Stop(context.Background())
		eng.Observe(ledger)
	}

	if cfg.Snapshot.LoadOnStart {
		restore(ctx, eng, saves, files, cfg.Snapshot.AutosaveName, opts, cat, logger)
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	sched.AddTicker("world_tick", cfg.World.TickInterval(), eng.Step)

	if cfg.Snapshot.AutosaveInterval > 0 {
		var save func()
		save = func() {
			info, err := autosave(ctx, eng, saves, files, cfg.Snapshot.AutosaveName)
			if err != nil {
				logger.Warn("autosave failed; retrying", zap.Error(err), zap.Duration("in", autosaveRetry))
				sched.AddDelay("autosave_retry", autosaveRetry, save)
				return
			}
			logger.Debug("autosaved", zap.String("name", info.Name), zap.Uint64("tick", info.Tick))
		}
		sched.AddTicker("autosave", cfg.Snapshot.AutosaveInterval, func(time.Duration) { save() })
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(ctx, api.Deps{
		Engine:    eng,
		Options:   opts,
		Saves:     saves,
		Ledger:    ledger,
		Scheduler: sched,
		Stream:    rl,
		PubSub:    ps,
		Security:  cfg.Security,
		AdminKey:  cfg.Server.AdminKey,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
	if cfg.Snapshot.AutosaveInterval > 0 {
		if _, err := autosave(shutdownCtx, eng, saves, files, cfg.Snapshot.AutosaveName); err != nil {
			logger.Error("final autosave failed", zap.Error(err))
		}
	}
}

// autosave writes the world to the database and, when configured, to a
// snapshot file as an off-database copy.
func autosave(ctx context.Context, eng *sim.Engine, saves persist.Backend, files *persist.FileStore, name string) (persist.Info, error) {
	info, err := persist.SaveEngine(ctx, saves, eng, name)
	if err != nil {
		return info, err
	}
	if files != nil {
		if _, err := persist.SaveEngine(ctx, files, eng, name); err != nil {
			return info, fmt.Errorf("snapshot file: %w", err)
		}
	}
	return info, nil
}

// restore loads the autosave, preferring the database copy over the file.
func restore(ctx context.Context, eng *sim.Engine, saves persist.Backend, files *persist.FileStore, name string, opts world.Options, cat *catalog.Catalog, logger *zap.Logger) {
	backends := []persist.Backend{saves}
	if files != nil {
		backends = append(backends, files)
	}
	for _, b := range backends {
		w, err := persist.LoadEngine(ctx, b, eng, name, opts, cat, logger)
		if errors.Is(err, persist.ErrNotFound) {
			continue
		}
		if err != nil {
			logger.Error("restore failed; starting fresh", zap.String("name", name), zap.Error(err))
			return
		}
		logger.Info("world restored", zap.String("name", name), zap.Uint64("tick", w.Tick()))
		return
	}
	logger.Info("no autosave to restore", zap.String("name", name))
}
