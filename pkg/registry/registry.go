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

// Package registry persists the per-device access policy in SQLite.
//
// The reconciliation engine, the admin API, and external tooling all share
// one database file, so every write is a single statement and the
// connection carries WAL journaling plus a busy timeout.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
)

// timeLayout matches SQLite's datetime() output so rows written by external
// tooling stay readable. Values are stored in UTC.
const timeLayout = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS mac_addresses (
    mac_address TEXT PRIMARY KEY,
    status TEXT CHECK(status IN ('authorized', 'quarantine', 'banned')),
    first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
    last_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
    comment TEXT
)`

// Store is the SQLite-backed policy registry.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// New opens or creates the registry database at path and prepares the schema.
func New(ctx context.Context, path string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	// busy_timeout covers writes racing the admin process, WAL keeps readers
	// unblocked while a write is in flight.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}

	// SQLite allows one writer per process at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping registry database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init registry schema: %w", err)
	}

	log.Info().Str("path", path).Msg("Policy registry ready")

	return &Store{db: db, logger: log}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const upsertQuery = `
INSERT INTO mac_addresses (mac_address, status, first_seen, last_seen, comment)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(mac_address) DO UPDATE SET
    status = excluded.status,
    last_seen = excluded.last_seen,
    comment = CASE WHEN excluded.comment != '' THEN excluded.comment
                   ELSE COALESCE(mac_addresses.comment, '') END`

// Upsert records mac with the given status, creating the row when absent.
// first_seen is never overwritten and an existing comment survives an empty
// replacement. The whole operation is one statement so interleaved writers
// never observe a half-applied row.
func (s *Store) Upsert(ctx context.Context, mac string, status models.Status, comment string) error {
	mac, err := models.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	if !status.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}

	now := formatTime(time.Now())

	if _, err := s.db.ExecContext(ctx, upsertQuery, mac, string(status), now, now, comment); err != nil {
		return fmt.Errorf("upsert %s: %w", mac, err)
	}

	s.logger.Debug().
		Str("mac", mac).
		Str("status", string(status)).
		Msg("Recorded device policy")

	return nil
}

// UpdateStatus replaces the policy for an existing row. last_seen is left
// alone; it tracks network presence, not administrative edits.
func (s *Store) UpdateStatus(ctx context.Context, mac string, status models.Status) error {
	mac, err := models.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	if !status.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE mac_addresses SET status = ? WHERE mac_address = ?", string(status), mac)
	if err != nil {
		return fmt.Errorf("update status %s: %w", mac, err)
	}

	if err := requireRow(result, mac); err != nil {
		return err
	}

	s.logger.Debug().
		Str("mac", mac).
		Str("status", string(status)).
		Msg("Updated device policy")

	return nil
}

// GetStatus returns the policy for mac and whether a row exists.
func (s *Store) GetStatus(ctx context.Context, mac string) (models.Status, bool, error) {
	mac, err := models.NormalizeMAC(mac)
	if err != nil {
		return "", false, err
	}

	var status string

	err = s.db.QueryRowContext(ctx,
		"SELECT status FROM mac_addresses WHERE mac_address = ?", mac).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("get status %s: %w", mac, err)
	}

	return models.Status(status), true, nil
}

const selectDevice = `
SELECT mac_address, status, first_seen, last_seen, COALESCE(comment, '')
FROM mac_addresses`

// Get returns the full registry row for mac.
func (s *Store) Get(ctx context.Context, mac string) (*models.Device, error) {
	mac, err := models.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectDevice+" WHERE mac_address = ?", mac)

	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mac)
	}

	if err != nil {
		return nil, fmt.Errorf("get %s: %w", mac, err)
	}

	return device, nil
}

// Touch refreshes last_seen for an existing row.
func (s *Store) Touch(ctx context.Context, mac string) error {
	mac, err := models.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE mac_addresses SET last_seen = ? WHERE mac_address = ?",
		formatTime(time.Now()), mac)
	if err != nil {
		return fmt.Errorf("touch %s: %w", mac, err)
	}

	return requireRow(result, mac)
}

// UpdateComment replaces the comment for an existing row.
func (s *Store) UpdateComment(ctx context.Context, mac, comment string) error {
	mac, err := models.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE mac_addresses SET comment = ? WHERE mac_address = ?", comment, mac)
	if err != nil {
		return fmt.Errorf("update comment %s: %w", mac, err)
	}

	return requireRow(result, mac)
}

// Delete removes the row for mac.
func (s *Store) Delete(ctx context.Context, mac string) error {
	mac, err := models.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM mac_addresses WHERE mac_address = ?", mac)
	if err != nil {
		return fmt.Errorf("delete %s: %w", mac, err)
	}

	if err := requireRow(result, mac); err != nil {
		return err
	}

	s.logger.Debug().Str("mac", mac).Msg("Removed device from registry")

	return nil
}

// List returns every registry row ordered by MAC.
func (s *Store) List(ctx context.Context) ([]models.Device, error) {
	return s.queryDevices(ctx, selectDevice+" ORDER BY mac_address")
}

// ListByStatus returns the rows carrying the given policy, ordered by MAC.
func (s *Store) ListByStatus(ctx context.Context, status models.Status) ([]models.Device, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}

	return s.queryDevices(ctx, selectDevice+" WHERE status = ? ORDER BY mac_address", string(status))
}

// CountByStatus returns row counts per policy status.
func (s *Store) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM mac_addresses GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)

	for rows.Next() {
		var (
			status string
			n      int
		)

		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}

		counts[models.Status(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}

	return counts, nil
}

func (s *Store) queryDevices(ctx context.Context, query string, args ...interface{}) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device

	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}

		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}

	return devices, nil
}

func requireRow(result sql.Result, mac string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", mac, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, mac)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var (
		device    models.Device
		status    string
		firstSeen sqlTime
		lastSeen  sqlTime
	)

	if err := row.Scan(&device.MAC, &status, &firstSeen, &lastSeen, &device.Comment); err != nil {
		return nil, err
	}

	device.Status = models.Status(status)
	device.FirstSeen = firstSeen.t
	device.LastSeen = lastSeen.t

	return &device, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// sqlTime accepts the timestamp shapes the driver may hand back: TEXT in the
// canonical layout, or a time.Time when the driver parsed the DATETIME
// column itself.
type sqlTime struct {
	t time.Time
}

func (st *sqlTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		st.t = time.Time{}
	case time.Time:
		st.t = v.UTC()
	case string:
		return st.parse(v)
	case []byte:
		return st.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}

	return nil
}

func (st *sqlTime) parse(s string) error {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}

	st.t = t

	return nil
}
