package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/config"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/db"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/migrate"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/repo"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/storage"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/store"
)

// Options locate a workspace. DBPath overrides the database file, ":memory:"
// keeps everything in process.
type Options struct {
	Workspace string
	DBPath    string
	Out       io.Writer
}

// Portal is a fully wired workspace.
type Portal struct {
	DB      *sqlx.DB
	Config  *config.Config
	Backend *storage.Failover
	Store   *store.Store
	Engine  engine.Engine
	Log     *logrus.Logger
}

// Open loads the workspace config, opens and migrates the database, selects
// the storage backends and loads the shared store.
func Open(ctx context.Context, opts Options) (*Portal, error) {
	cfg, err := config.LoadOrDefault(opts.Workspace)
	if err != nil {
		return nil, err
	}
	log, err := NewLogger(cfg, opts.Out)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Path: opts.DBPath})
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	sqlite := storage.NewSQLite(repo.Repo{DB: conn})
	memory := storage.NewMemory(cfg.Storage.MemoryQuotaBytes)
	primary, secondary, err := storage.Select(cfg.Storage.Primary, sqlite, memory)
	if err != nil {
		conn.Close()
		return nil, err
	}
	backend := storage.NewFailover(primary, secondary, log.WithField("component", "storage"))
	st := store.New(backend)
	if err := st.Load(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("load works: %w", err)
	}
	eng, err := engine.New(conn, cfg, st, log.WithField("component", "engine"))
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{"backend": primary.Name(), "works": len(st.Snapshot().Items)}).Debug("workspace opened")
	return &Portal{DB: conn, Config: cfg, Backend: backend, Store: st, Engine: eng, Log: log}, nil
}

func (p *Portal) Close() error {
	if p == nil || p.DB == nil {
		return nil
	}
	return p.DB.Close()
}

// NewLogger builds the process logger from the log section of cfg.
func NewLogger(cfg *config.Config, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	if out != nil {
		logger.Out = out
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		logger.Formatter = &logrus.JSONFormatter{}
	default:
		logger.Formatter = &logrus.TextFormatter{}
	}
	level := logrus.InfoLevel
	if cfg.Log.Level != "" {
		l, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("config.log.level: %w", err)
		}
		level = l
	}
	logger.SetLevel(level)
	logger.AddHook(&portalFieldsHook{ulb: cfg.Portal.ULB})
	return logger, nil
}

// portalFieldsHook stamps every entry with the local body the portal serves.
type portalFieldsHook struct {
	ulb string
}

func (h *portalFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *portalFieldsHook) Fire(e *logrus.Entry) error {
	if h.ulb != "" {
		e.Data["ulb"] = h.ulb
	}
	return nil
}
