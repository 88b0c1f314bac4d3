package testutil

import (
	"path/filepath"
	"testing"

	"github.com/kasuganosora/basebuild/server/config"
	dbadapter "github.com/kasuganosora/basebuild/server/db"
	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/kasuganosora/basebuild/server/model"
	"github.com/kasuganosora/basebuild/server/pubsub"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupTestDB opens a SQLite database in the test's temp dir and runs
// AutoMigrate. Each call gets its own file, so tests may run in parallel.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() { _ = dbadapter.Close(db) })
	return db
}

// SetupTestPubSub creates an in-process PubSub (no Redis required).
func SetupTestPubSub(t *testing.T) pubsub.PubSub {
	t.Helper()
	ps, err := pubsub.New(pubsub.Config{})
	require.NoError(t, err, "SetupTestPubSub: New")
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

// NewTestWorld builds a width x height world with every tile floored and no
// characters.
func NewTestWorld(t *testing.T, width, height int) *world.World {
	t.Helper()
	w, err := world.New(world.Options{Width: width, Height: height}, nil, zap.NewNop())
	require.NoError(t, err, "NewTestWorld")
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			w.SetTileKind(w.TileAt(x, y), world.TileFloor)
		}
	}
	return w
}
