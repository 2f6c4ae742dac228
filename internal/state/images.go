package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Image is a derived image committed for one (base image, model) pair.
type Image struct {
	BaseImage  string
	Model      string
	Image      string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// ErrImageNotFound is returned when no derived image is recorded for a key.
var ErrImageNotFound = errors.New("derived image not found")

// RecordImage inserts or replaces the derived image for its key.
func (db *DB) RecordImage(img *Image) error {
	now := time.Now().UTC()
	if img.CreatedAt.IsZero() {
		img.CreatedAt = now
	}
	if img.LastUsedAt.IsZero() {
		img.LastUsedAt = now
	}

	_, err := db.Exec(`
		INSERT INTO images (base_image, model, image, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (base_image, model) DO UPDATE SET
			image = excluded.image,
			created_at = excluded.created_at,
			last_used_at = excluded.last_used_at`,
		img.BaseImage,
		img.Model,
		img.Image,
		img.CreatedAt.UTC().Format(time.RFC3339),
		img.LastUsedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record image: %w", err)
	}
	return nil
}

// GetImage returns the derived image recorded for (baseImage, model).
func (db *DB) GetImage(baseImage, model string) (*Image, error) {
	row := db.QueryRow(`
		SELECT base_image, model, image, created_at, last_used_at
		FROM images WHERE base_image = ? AND model = ?`, baseImage, model)

	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// TouchImage updates the last-used time of a derived image.
func (db *DB) TouchImage(baseImage, model string, at time.Time) error {
	result, err := db.Exec(
		"UPDATE images SET last_used_at = ? WHERE base_image = ? AND model = ?",
		at.UTC().Format(time.RFC3339), baseImage, model,
	)
	if err != nil {
		return fmt.Errorf("failed to touch image: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrImageNotFound
	}
	return nil
}

// DeleteImage removes the record for (baseImage, model).
func (db *DB) DeleteImage(baseImage, model string) error {
	result, err := db.Exec("DELETE FROM images WHERE base_image = ? AND model = ?", baseImage, model)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrImageNotFound
	}
	return nil
}

// ListImages returns all recorded derived images, most recently used first.
func (db *DB) ListImages() ([]*Image, error) {
	rows, err := db.Query(`
		SELECT base_image, model, image, created_at, last_used_at
		FROM images ORDER BY last_used_at DESC, model`)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*Image, error) {
	var img Image
	var createdAt, lastUsedAt string

	if err := s.Scan(&img.BaseImage, &img.Model, &img.Image, &createdAt, &lastUsedAt); err != nil {
		return nil, err
	}

	var err error
	img.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	img.LastUsedAt, err = time.Parse(time.RFC3339, lastUsedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_used_at: %w", err)
	}
	return &img, nil
}
