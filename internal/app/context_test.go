package app

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/config"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/storage"
)

func TestOpenUsesDefaultsWithoutConfig(t *testing.T) {
	p, err := Open(context.Background(), Options{Workspace: t.TempDir(), Out: &bytes.Buffer{}})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, storage.KindSQLite, p.Backend.Active().Name())
	assert.Empty(t, p.Store.Snapshot().Items)
	assert.True(t, p.Config.HasSector("Roads"))
}

func TestOpenHonoursMemoryPrimary(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Primary = storage.KindMemory
	yml := []byte(config.GenerateDefault())
	yml = bytes.Replace(yml, []byte("primary: sqlite"), []byte("primary: memory"), 1)
	require.NoError(t, os.WriteFile(config.Path(dir), yml, 0o644))

	p, err := Open(context.Background(), Options{Workspace: dir, DBPath: ":memory:", Out: &bytes.Buffer{}})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, cfg.Storage.Primary, p.Config.Storage.Primary)
	assert.Equal(t, storage.KindMemory, p.Backend.Active().Name())
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Portal.ULB = "Guntur"
	cfg.Log.Format = "json"
	cfg.Log.Level = "debug"
	var buf bytes.Buffer
	log, err := NewLogger(cfg, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("work_id", "w1").Info("hello")
	assert.Contains(t, buf.String(), `"ulb":"Guntur"`)
	assert.Contains(t, buf.String(), `"work_id":"w1"`)

	cfg.Log.Level = "loud"
	_, err = NewLogger(cfg, &buf)
	assert.Error(t, err)
}
