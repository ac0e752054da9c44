package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyroom-backend/internal/config"
	"studyroom-backend/internal/model"
)

func TestConnectSQLiteMigrates(t *testing.T) {
	db, err := ConnectDB(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "rooms.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Ping(db))
	for _, m := range []interface{}{&model.Room{}, &model.RoomMember{}, &model.Task{}, &model.Stroke{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := ConnectDB(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
