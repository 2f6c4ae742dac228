package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FixtureStatus represents the state of one provisioning attempt.
type FixtureStatus string

const (
	StatusProvisioning FixtureStatus = "provisioning"
	StatusReady        FixtureStatus = "ready"
	StatusFailed       FixtureStatus = "failed"
	StatusRemoved      FixtureStatus = "removed"
)

// ValidStatuses contains all valid fixture status values.
var ValidStatuses = []FixtureStatus{
	StatusProvisioning,
	StatusReady,
	StatusFailed,
	StatusRemoved,
}

// IsValidStatus returns true if s is a valid status.
func IsValidStatus(s FixtureStatus) bool {
	for _, valid := range ValidStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Fixture is one recorded provisioning attempt.
type Fixture struct {
	ID          string        // 32 hex chars
	BaseImage   string        // Base image of the key
	Model       string        // Model of the key
	Backend     string        // Backend type (e.g., "docker")
	ContainerID string        // May be empty until the container starts
	Endpoint    string        // May be empty until ready
	Source      string        // "cached" or "built"
	Status      FixtureStatus // Current status
	Error       string        // Failure message, if any
	StartedAt   time.Time     // When provisioning began
	Elapsed     time.Duration // Time to ready or failure
}

// ErrFixtureNotFound is returned when a fixture with the given ID does not exist.
var ErrFixtureNotFound = errors.New("fixture not found")

// ErrInvalidStatus is returned when an invalid status is provided.
var ErrInvalidStatus = errors.New("invalid status")

// CreateFixture inserts a new fixture record.
func (db *DB) CreateFixture(f *Fixture) error {
	if !IsValidStatus(f.Status) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, f.Status)
	}

	_, err := db.Exec(`
		INSERT INTO fixtures (
			id, base_image, model, backend, container_id, endpoint,
			source, status, error, started_at, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID,
		f.BaseImage,
		f.Model,
		f.Backend,
		nullString(f.ContainerID),
		nullString(f.Endpoint),
		nullString(f.Source),
		string(f.Status),
		nullString(f.Error),
		f.StartedAt.UTC().Format(startedAtFormat),
		f.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to create fixture: %w", err)
	}
	return nil
}

// GetFixture retrieves a fixture by full ID.
func (db *DB) GetFixture(id string) (*Fixture, error) {
	row := db.QueryRow(selectFixtures+" WHERE id = ?", id)

	f, err := scanFixture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFixtureNotFound
		}
		return nil, fmt.Errorf("failed to get fixture: %w", err)
	}
	return f, nil
}

// UpdateFixture updates the mutable fields of an existing fixture.
func (db *DB) UpdateFixture(f *Fixture) error {
	if !IsValidStatus(f.Status) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, f.Status)
	}

	result, err := db.Exec(`
		UPDATE fixtures SET
			container_id = ?,
			endpoint = ?,
			source = ?,
			status = ?,
			error = ?,
			elapsed_ms = ?
		WHERE id = ?`,
		nullString(f.ContainerID),
		nullString(f.Endpoint),
		nullString(f.Source),
		string(f.Status),
		nullString(f.Error),
		f.Elapsed.Milliseconds(),
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fixture: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrFixtureNotFound
	}
	return nil
}

// ListOptions specifies filters for listing fixtures.
type ListOptions struct {
	BaseImage string          // Filter by base image (exact match)
	Model     string          // Filter by model (exact match)
	Statuses  []FixtureStatus // Filter by status (any of these)
	Limit     int             // Maximum rows; 0 means no limit
}

// ListFixtures returns fixtures matching the given filters, newest first.
func (db *DB) ListFixtures(opts ListOptions) ([]*Fixture, error) {
	query := selectFixtures

	var conditions []string
	var args []any

	if opts.BaseImage != "" {
		conditions = append(conditions, "base_image = ?")
		args = append(args, opts.BaseImage)
	}

	if opts.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, opts.Model)
	}

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, s := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY started_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	defer rows.Close()

	var fixtures []*Fixture
	for rows.Next() {
		f, err := scanFixture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixture: %w", err)
		}
		fixtures = append(fixtures, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fixtures: %w", err)
	}

	return fixtures, nil
}

// MarkStaleFixtures moves records left in provisioning by an earlier run that
// never finished to failed, and returns how many were changed.
func (db *DB) MarkStaleFixtures(before time.Time) (int64, error) {
	result, err := db.Exec(`
		UPDATE fixtures SET status = ?, error = 'interrupted'
		WHERE status = ? AND started_at < ?`,
		string(StatusFailed), string(StatusProvisioning), before.UTC().Format(startedAtFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale fixtures: %w", err)
	}
	return result.RowsAffected()
}

// startedAtFormat has fixed-width fractional seconds so stored values sort
// lexically in time order.
const startedAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

const selectFixtures = `
		SELECT id, base_image, model, backend, container_id, endpoint,
		       source, status, error, started_at, elapsed_ms
		FROM fixtures`

// scanFixture scans a row into a Fixture struct.
func scanFixture(s scanner) (*Fixture, error) {
	var f Fixture
	var containerID, endpoint, source, errMsg sql.NullString
	var startedAt string
	var elapsedMS int64

	err := s.Scan(
		&f.ID,
		&f.BaseImage,
		&f.Model,
		&f.Backend,
		&containerID,
		&endpoint,
		&source,
		&f.Status,
		&errMsg,
		&startedAt,
		&elapsedMS,
	)
	if err != nil {
		return nil, err
	}

	f.ContainerID = containerID.String
	f.Endpoint = endpoint.String
	f.Source = source.String
	f.Error = errMsg.String
	f.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	f.StartedAt, err = time.Parse(startedAtFormat, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	return &f, nil
}

// nullString converts an empty string to sql.NullString for optional fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
