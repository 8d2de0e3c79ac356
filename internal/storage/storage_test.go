package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/db"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/migrate"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/repo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems() []domain.WorkItem {
	cr := "CR-1"
	return []domain.WorkItem{
		{ID: "b", Sector: "Water Supply", ProposalName: "Pipeline", Cost: decimal.NewFromInt(250), Priority: 1, CRNumber: &cr,
			Status: domain.StatusPendingReview, ForwardedTo: domain.ForwardedTo{Section: "Commissioner"},
			WorkImage: domain.EncodedAttachment("data:image/png;base64,AAAA")},
		{ID: "a", Sector: "Roads", ProposalName: "Culvert", Cost: decimal.RequireFromString("99.95"), Priority: 2,
			Status: domain.StatusEEPHApproved, ForwardedTo: domain.ForwardedTo{Section: "EEPH"}},
	}
}

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	conn, err := db.Open(db.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)
	return NewSQLite(repo.Repo{DB: conn})
}

func assertSameItems(t *testing.T, want, got []domain.WorkItem) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Status, got[i].Status)
		assert.True(t, want[i].Cost.Equal(got[i].Cost))
		assert.True(t, want[i].WorkImage.Equal(got[i].WorkImage))
		assert.Equal(t, want[i].CRLabel(), got[i].CRLabel())
	}
}

func TestSQLite_RoundTripKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	items := sampleItems()
	require.NoError(t, s.Put(ctx, items))
	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	assertSameItems(t, items, got)

	require.NoError(t, s.Put(ctx, items[:1]))
	got, err = s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.Clear(ctx))
	got, err = s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_RefusesRawAttachments(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	items := sampleItems()
	items[1].DetailedReport = domain.RawAttachment("r.pdf", "application/pdf", []byte("x"))
	err := s.Put(ctx, items)
	assert.ErrorIs(t, err, domain.ErrNotEncoded)
}

func TestMemory_Quota(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(64)
	err := m.Put(ctx, sampleItems())
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	got, err := m.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	big := NewMemory(0)
	require.NoError(t, big.Put(ctx, sampleItems()))
	got, err = big.GetAll(ctx)
	require.NoError(t, err)
	assertSameItems(t, sampleItems(), got)
	require.NoError(t, big.Clear(ctx))
	got, _ = big.GetAll(ctx)
	assert.Empty(t, got)
}

type brokenBackend struct{ err error }

func (b brokenBackend) Name() string                                      { return "broken" }
func (b brokenBackend) Put(context.Context, []domain.WorkItem) error      { return b.err }
func (b brokenBackend) GetAll(context.Context) ([]domain.WorkItem, error) { return nil, b.err }
func (b brokenBackend) Clear(context.Context) error                       { return b.err }

func TestFailover_WritesSecondaryWhenPrimaryFails(t *testing.T) {
	ctx := context.Background()
	logger, hook := logtest.NewNullLogger()
	secondary := NewMemory(0)
	f := NewFailover(brokenBackend{err: errors.New("disk full")}, secondary, logger)

	require.NoError(t, f.Put(ctx, sampleItems()))
	assert.Equal(t, secondary, f.Active())
	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "broken", hook.LastEntry().Data["backend"])

	got, err := f.GetAll(ctx)
	require.NoError(t, err)
	assertSameItems(t, sampleItems(), got)
}

func TestFailover_ReadFallsBack(t *testing.T) {
	ctx := context.Background()
	logger, _ := logtest.NewNullLogger()
	primary := newSQLite(t)
	secondary := NewMemory(0)
	require.NoError(t, secondary.Put(ctx, sampleItems()))

	f := NewFailover(brokenBackend{err: errors.New("locked")}, secondary, logger)
	got, err := f.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	f = NewFailover(primary, secondary, logger)
	require.NoError(t, f.Put(ctx, sampleItems()[:1]))
	got, err = f.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFailover_BothFail(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	f := NewFailover(brokenBackend{err: errors.New("a")}, brokenBackend{err: errors.New("b")}, logger)
	err := f.Put(context.Background(), sampleItems())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestSelect(t *testing.T) {
	s, m := NewMemory(1), NewMemory(2)
	p, sec, err := Select("memory", s, m)
	require.NoError(t, err)
	assert.Same(t, m, p)
	assert.Same(t, s, sec)
	_, _, err = Select("redis", s, m)
	assert.Error(t, err)
}
