package repository

import (
	"testing"

	"github.com/nimasrn/daily-mass/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type TestDB struct {
	*pg.DB
	Raw *gorm.DB
}

// SetupTestDB opens a migrated in-memory sqlite database. A single connection
// keeps every query on the same in-memory database.
func SetupTestDB(t testing.TB) *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&SubscriberEntity{}, &ReflectionEntity{}, &DeliveryLogEntity{})
	require.NoError(t, err)

	return &TestDB{
		DB:  pg.New(db, db),
		Raw: db,
	}
}
