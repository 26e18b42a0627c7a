package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SQLite(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, ConnectionConfig{
		Dialect:      DialectSQLite,
		DSN:          "file:" + t.Name() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, DialectSQLite))

	version, err := SchemaVersion(ctx, db, DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	// Migrating twice is a no-op
	require.NoError(t, Migrate(ctx, db, DialectSQLite))

	runStoreContract(t, NewStore(db, time.Second))
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	_, err := Open(context.Background(), ConnectionConfig{Dialect: "oracle", DSN: "x"})
	assert.Error(t, err)
}
