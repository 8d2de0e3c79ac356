package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/sirupsen/logrus"
)

// Failover writes to the primary and falls back to the secondary when the
// primary fails. Reads start from whichever backend took the last write.
type Failover struct {
	Primary   Backend
	Secondary Backend
	Log       logrus.FieldLogger

	mu     sync.Mutex
	latest Backend
}

func NewFailover(primary, secondary Backend, log logrus.FieldLogger) *Failover {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Failover{Primary: primary, Secondary: secondary, Log: log, latest: primary}
}

func (f *Failover) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

// Active returns the backend holding the most recent write.
func (f *Failover) Active() Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return f.Primary
	}
	return f.latest
}

func (f *Failover) setLatest(b Backend) {
	f.mu.Lock()
	f.latest = b
	f.mu.Unlock()
}

func (f *Failover) Put(ctx context.Context, items []domain.WorkItem) error {
	perr := f.Primary.Put(ctx, items)
	if perr == nil {
		f.setLatest(f.Primary)
		return nil
	}
	f.Log.WithError(perr).WithField("backend", f.Primary.Name()).Warn("primary storage write failed, using secondary")
	if serr := f.Secondary.Put(ctx, items); serr != nil {
		f.Log.WithError(serr).WithField("backend", f.Secondary.Name()).Error("secondary storage write failed")
		return errors.Join(perr, serr)
	}
	f.setLatest(f.Secondary)
	return nil
}

func (f *Failover) GetAll(ctx context.Context) ([]domain.WorkItem, error) {
	first := f.Active()
	second := f.Secondary
	if first == f.Secondary {
		second = f.Primary
	}
	items, ferr := first.GetAll(ctx)
	if ferr == nil {
		return items, nil
	}
	f.Log.WithError(ferr).WithField("backend", first.Name()).Warn("storage read failed, trying fallback")
	items, serr := second.GetAll(ctx)
	if serr != nil {
		return nil, errors.Join(ferr, serr)
	}
	return items, nil
}

// Clear empties both backends.
func (f *Failover) Clear(ctx context.Context) error {
	err := errors.Join(f.Primary.Clear(ctx), f.Secondary.Clear(ctx))
	f.setLatest(f.Primary)
	return err
}
