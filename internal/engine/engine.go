package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/attachment"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/config"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/events"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/repo"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/session"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/store"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/workflow"
)

type Engine struct {
	DB       *sqlx.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Store    *store.Store
	Sessions *session.Registry
	Encoder  *attachment.Encoder
	Match    workflow.Matcher
	Log      logrus.FieldLogger
	Now      func() time.Time

	ids      *sonyflake.Sonyflake
	validate *validator.Validate
}

// New wires an engine over an opened, migrated database and a loaded store.
func New(db *sqlx.DB, cfg *config.Config, st *store.Store, log logrus.FieldLogger) (Engine, error) {
	if cfg == nil {
		return Engine{}, errors.New("config not loaded")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	match, err := workflow.MatcherFor(cfg.Workflow.RoleMatching)
	if err != nil {
		return Engine{}, err
	}
	ids, err := newIDGenerator(cfg.Portal.MachineID, log)
	if err != nil {
		return Engine{}, err
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{},
		Config:   cfg,
		Store:    st,
		Sessions: session.NewRegistry(cfg.SessionTTL()),
		Encoder:  attachment.NewEncoder(cfg.Attachments.MaxBytes),
		Match:    match,
		Log:      log,
		Now:      time.Now,
		ids:      ids,
		validate: newValidator(),
	}, nil
}

// newIDGenerator uses the configured machine id, else sonyflake's default
// (low 16 bits of the private IP). Hosts without a private address fall back
// to the process id folded into 16 bits.
func newIDGenerator(configured uint16, log logrus.FieldLogger) (*sonyflake.Sonyflake, error) {
	var st sonyflake.Settings
	if configured != 0 {
		st.MachineID = func() (uint16, error) { return configured, nil }
	}
	if ids := sonyflake.NewSonyflake(st); ids != nil {
		return ids, nil
	}
	if configured != 0 {
		return nil, errors.New("id generator unavailable")
	}
	id := foldPID(os.Getpid())
	log.WithField("machine_id", id).Warn("no private IP for work ids; set portal.machine_id when several portals share a database")
	ids := sonyflake.NewSonyflake(sonyflake.Settings{MachineID: func() (uint16, error) { return id, nil }})
	if ids == nil {
		return nil, errors.New("id generator unavailable")
	}
	return ids, nil
}

func foldPID(pid int) uint16 {
	return uint16(pid) ^ uint16(pid>>16)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) ceiling() decimal.Decimal {
	return e.Config.CeilingAmount()
}

// nextID issues the id a work keeps once it is in the shared store.
func (e Engine) nextID() (string, error) {
	id, err := e.ids.NextID()
	if err != nil {
		return "", fmt.Errorf("generate work id: %w", err)
	}
	return strconv.FormatUint(id, 10), nil
}

// record appends an audit event. The store is authoritative, so a failed
// append is logged and not returned.
func (e Engine) record(ctx context.Context, evtType, entityID string, p domain.Principal, payload events.EventPayload) {
	if e.DB == nil {
		return
	}
	if err := e.Events.Append(ctx, e.DB, evtType, entityID, p.ID, string(p.Role), payload); err != nil {
		e.Log.WithError(err).WithFields(logrus.Fields{"event": evtType, "work_id": entityID}).Error("append audit event")
	}
}
