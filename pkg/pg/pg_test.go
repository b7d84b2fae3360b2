package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type counter struct {
	ID    int64 `gorm:"primaryKey"`
	Value int
}

func setupDB(t *testing.T) *DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&counter{}))
	return New(db, db)
}

func count(t *testing.T, db *DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Read(context.Background()).Model(&counter{}).Count(&n).Error)
	return n
}

func TestWithinTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db := setupDB(t)
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, db.Write(ctx).Create(&counter{Value: 1}).Error)
			// reads inside the transaction see its writes
			var n int64
			require.NoError(t, db.Read(ctx).Model(&counter{}).Count(&n).Error)
			assert.Equal(t, int64(1), n)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count(t, db))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := setupDB(t)
		boom := errors.New("boom")
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, db.Write(ctx).Create(&counter{Value: 1}).Error)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int64(0), count(t, db))
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		db := setupDB(t)
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, db.Write(ctx).Create(&counter{Value: 1}).Error)
			inner := db.WithinTransaction(ctx, func(ctx context.Context) error {
				return db.Write(ctx).Create(&counter{Value: 2}).Error
			})
			require.NoError(t, inner)
			return errors.New("abort outer")
		})
		assert.Error(t, err)
		assert.Equal(t, int64(0), count(t, db))
	})
}

func TestPing(t *testing.T) {
	assert.NoError(t, setupDB(t).Ping(context.Background()))
}

func TestConfig_DSN(t *testing.T) {
	c := Config{Host: "db", Port: "5432", User: "mass", Password: "pw", Database: "daily"}
	assert.Equal(t, "host=db user=mass password=pw dbname=daily port=5432 sslmode=disable", c.DSN())

	c.SSLMode = "verify-full"
	assert.Contains(t, c.DSN(), "sslmode=verify-full")
}

func TestConfig_ApplyPool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	Config{MaxOpenConns: 7, ConnMaxLifetime: time.Minute}.applyPool(sqlDB)
	assert.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)
}
