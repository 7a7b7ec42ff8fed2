/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "lanwarden.db"), logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestUpsertCreatesRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "AA:BB:CC:DD:EE:01", models.StatusQuarantine, "new printer"))

	device, err := store.Get(ctx, "aa:bb:cc:dd:ee:01")
	require.NoError(t, err)

	assert.Equal(t, "aa:bb:cc:dd:ee:01", device.MAC)
	assert.Equal(t, models.StatusQuarantine, device.Status)
	assert.Equal(t, "new printer", device.Comment)
	assert.WithinDuration(t, time.Now(), device.FirstSeen, 5*time.Second)
	assert.True(t, device.LastSeen.Equal(device.FirstSeen))
}

func TestUpsertPreservesFirstSeenAndComment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:02", models.StatusQuarantine, "guest laptop"))

	before, err := store.Get(ctx, "aa:bb:cc:dd:ee:02")
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:02", models.StatusBanned, ""))

	after, err := store.Get(ctx, "aa:bb:cc:dd:ee:02")
	require.NoError(t, err)

	assert.Equal(t, models.StatusBanned, after.Status)
	assert.Equal(t, "guest laptop", after.Comment)
	assert.True(t, after.FirstSeen.Equal(before.FirstSeen))
}

func TestUpsertReplacesCommentWhenProvided(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:03", models.StatusQuarantine, "old note"))
	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:03", models.StatusAuthorized, "verified owner"))

	device, err := store.Get(ctx, "aa:bb:cc:dd:ee:03")
	require.NoError(t, err)

	assert.Equal(t, models.StatusAuthorized, device.Status)
	assert.Equal(t, "verified owner", device.Comment)
}

func TestUpsertRejectsBadInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "not-a-mac", models.StatusBanned, "")
	assert.ErrorIs(t, err, models.ErrInvalidMAC)

	err = store.Upsert(ctx, "aa:bb:cc:dd:ee:04", models.Status("lurking"), "")
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
}

func TestGetStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	status, found, err := store.GetStatus(ctx, "aa:bb:cc:dd:ee:05")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, status)

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:05", models.StatusAuthorized, ""))

	status, found, err = store.GetStatus(ctx, "AA:BB:CC:DD:EE:05")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.StatusAuthorized, status)
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "aa:bb:cc:dd:ee:06")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchRefreshesOnlyLastSeen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:07", models.StatusQuarantine, ""))

	// Backdate the row so the refresh is observable at one second resolution.
	_, err := store.db.ExecContext(ctx,
		"UPDATE mac_addresses SET first_seen = '2001-01-02 03:04:05', last_seen = '2001-01-02 03:04:05' WHERE mac_address = ?",
		"aa:bb:cc:dd:ee:07")
	require.NoError(t, err)

	require.NoError(t, store.Touch(ctx, "aa:bb:cc:dd:ee:07"))

	device, err := store.Get(ctx, "aa:bb:cc:dd:ee:07")
	require.NoError(t, err)

	assert.Equal(t, 2001, device.FirstSeen.Year())
	assert.WithinDuration(t, time.Now(), device.LastSeen, time.Minute)
}

func TestTouchMissing(t *testing.T) {
	store := newTestStore(t)

	err := store.Touch(context.Background(), "aa:bb:cc:dd:ee:08")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByMAC(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:22", models.StatusBanned, ""))
	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:11", models.StatusAuthorized, ""))
	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:33", models.StatusQuarantine, ""))

	devices, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, "aa:bb:cc:dd:ee:11", devices[0].MAC)
	assert.Equal(t, "aa:bb:cc:dd:ee:22", devices[1].MAC)
	assert.Equal(t, "aa:bb:cc:dd:ee:33", devices[2].MAC)
}

func TestListByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:41", models.StatusBanned, ""))
	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:42", models.StatusBanned, ""))
	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:43", models.StatusAuthorized, ""))

	banned, err := store.ListByStatus(ctx, models.StatusBanned)
	require.NoError(t, err)
	require.Len(t, banned, 2)
	assert.Equal(t, "aa:bb:cc:dd:ee:41", banned[0].MAC)
	assert.Equal(t, "aa:bb:cc:dd:ee:42", banned[1].MAC)

	_, err = store.ListByStatus(ctx, models.Status("lurking"))
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
}

func TestUpdateStatusKeepsLastSeen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:41", models.StatusQuarantine, "new phone"))

	_, err := store.db.ExecContext(ctx,
		"UPDATE mac_addresses SET last_seen = '2001-01-02 03:04:05' WHERE mac_address = ?",
		"aa:bb:cc:dd:ee:41")
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(ctx, "aa:bb:cc:dd:ee:41", models.StatusAuthorized))

	device, err := store.Get(ctx, "aa:bb:cc:dd:ee:41")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAuthorized, device.Status)
	assert.Equal(t, 2001, device.LastSeen.Year())
	assert.Equal(t, "new phone", device.Comment)
}

func TestUpdateStatusRejectsBadInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.UpdateStatus(ctx, "aa:bb:cc:dd:ee:42", models.StatusBanned)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:42", models.StatusQuarantine, ""))

	err = store.UpdateStatus(ctx, "aa:bb:cc:dd:ee:42", models.Status("paroled"))
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
}

func TestUpdateComment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:51", models.StatusAuthorized, "old"))
	require.NoError(t, store.UpdateComment(ctx, "aa:bb:cc:dd:ee:51", "lab workstation"))

	device, err := store.Get(ctx, "aa:bb:cc:dd:ee:51")
	require.NoError(t, err)
	assert.Equal(t, "lab workstation", device.Comment)

	err = store.UpdateComment(ctx, "aa:bb:cc:dd:ee:52", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:61", models.StatusBanned, ""))
	require.NoError(t, store.Delete(ctx, "aa:bb:cc:dd:ee:61"))

	_, err := store.Get(ctx, "aa:bb:cc:dd:ee:61")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete(ctx, "aa:bb:cc:dd:ee:61")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:71", models.StatusBanned, ""))
	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:72", models.StatusQuarantine, ""))
	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:73", models.StatusQuarantine, ""))

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)

	assert.Equal(t, map[models.Status]int{
		models.StatusBanned:     1,
		models.StatusQuarantine: 2,
	}, counts)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lanwarden.db")

	store, err := New(ctx, path, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, "aa:bb:cc:dd:ee:81", models.StatusBanned, "kept"))
	require.NoError(t, store.Close())

	reopened, err := New(ctx, path, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = reopened.Close() })

	device, err := reopened.Get(ctx, "aa:bb:cc:dd:ee:81")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBanned, device.Status)
	assert.Equal(t, "kept", device.Comment)
}

func TestReadsRowsWrittenByExternalTooling(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// The legacy admin UI writes datetime('now') values and NULL comments.
	_, err := store.db.ExecContext(ctx,
		"INSERT INTO mac_addresses (mac_address, status, first_seen, last_seen, comment) VALUES (?, ?, datetime('now'), datetime('now'), NULL)",
		"aa:bb:cc:dd:ee:91", "banned")
	require.NoError(t, err)

	device, err := store.Get(ctx, "aa:bb:cc:dd:ee:91")
	require.NoError(t, err)

	assert.Equal(t, models.StatusBanned, device.Status)
	assert.Empty(t, device.Comment)
	assert.WithinDuration(t, time.Now(), device.FirstSeen, time.Minute)
	assert.WithinDuration(t, time.Now(), device.LastSeen, time.Minute)
}
