package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/weddingdesk/internal/models"
)

func TestGetAndUpsertSystemSetting(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, MigrateSchema(db))

	value, err := GetSystemSetting(context.Background(), db, "missing")
	require.NoError(t, err)
	require.Equal(t, "", value)

	require.NoError(t, UpsertSystemSetting(context.Background(), db, "sample", "value1"))

	retrieved, err := GetSystemSetting(context.Background(), db, "sample")
	require.NoError(t, err)
	require.Equal(t, "value1", retrieved)

	require.NoError(t, UpsertSystemSetting(context.Background(), db, "sample", "value2"))

	retrieved, err = GetSystemSetting(context.Background(), db, "sample")
	require.NoError(t, err)
	require.Equal(t, "value2", retrieved)

	require.Error(t, UpsertSystemSetting(context.Background(), db, "  ", "x"))
}

func TestRecordAndGetTimestamp(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, MigrateSchema(db))
	ctx := context.Background()

	ts, err := GetTimestamp(ctx, db, models.SettingLastReminderSweep)
	require.NoError(t, err)
	require.True(t, ts.IsZero())

	when := time.Date(2026, time.June, 13, 8, 30, 0, 0, time.FixedZone("CEST", 2*60*60))
	require.NoError(t, RecordTimestamp(ctx, db, models.SettingLastReminderSweep, when))

	ts, err = GetTimestamp(ctx, db, models.SettingLastReminderSweep)
	require.NoError(t, err)
	require.True(t, ts.Equal(when))

	require.NoError(t, UpsertSystemSetting(ctx, db, models.SettingLastRetentionRun, "yesterday"))
	_, err = GetTimestamp(ctx, db, models.SettingLastRetentionRun)
	require.Error(t, err)
}
