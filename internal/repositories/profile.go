package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tunegraph/tunegraph/internal/models"
)

// ErrProfileNotFound is returned by Get when no record exists for the id.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository persists [models.CachedUser] records.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new ProfileRepository with the given database connection.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get retrieves a cached profile by upstream user id.
func (r *ProfileRepository) Get(id string) (*models.CachedUser, error) {
	query := `
		SELECT id, sequence, display_name, followers, image, top_tracks, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	var (
		user      models.CachedUser
		topTracks string
	)

	err := r.db.QueryRow(query, id).Scan(
		&user.ID, &user.Sequence, &user.DisplayName, &user.Followers,
		&user.Image, &topTracks, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	if err := json.Unmarshal([]byte(topTracks), &user.TopTracks); err != nil {
		return nil, fmt.Errorf("failed to decode cached top tracks: %w", err)
	}

	return &user, nil
}

// Upsert inserts a profile record on first sight of a user id, or overwrites
// the profile fields on later sightings. The top-tracks snapshot of an
// existing record is left untouched.
//
// The existence check and the write are separate statements; concurrent
// writers for the same id resolve last-write-wins.
func (r *ProfileRepository) Upsert(user models.User) error {
	if user.ID == "" {
		return fmt.Errorf("profile id is required")
	}

	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", user.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check profile existence: %w", err)
	}

	now := time.Now()

	if exists {
		query := `
			UPDATE users
			SET display_name = ?, followers = ?, image = ?, updated_at = ?
			WHERE id = ?
		`
		if _, err := r.db.Exec(query, user.DisplayName, user.Followers, user.Image, now, user.ID); err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return nil
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO users (id, sequence, display_name, followers, image, top_tracks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '[]', ?, ?)
	`
	if _, err := r.db.Exec(query, user.ID, sequence, user.DisplayName, user.Followers, user.Image, now, now); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	return nil
}

// SaveTopTracks replaces the cached top-tracks snapshot for an existing
// record. Unknown ids are a no-op: the snapshot is only kept for users whose
// profile has been cached first.
func (r *ProfileRepository) SaveTopTracks(id string, tracks []models.Track) error {
	if tracks == nil {
		tracks = []models.Track{}
	}

	encoded, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to encode top tracks: %w", err)
	}

	query := `
		UPDATE users
		SET top_tracks = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.Exec(query, string(encoded), time.Now(), id); err != nil {
		return fmt.Errorf("failed to save top tracks: %w", err)
	}

	return nil
}

// List retrieves all cached profiles in insertion order.
func (r *ProfileRepository) List() ([]*models.CachedUser, error) {
	query := `
		SELECT id, sequence, display_name, followers, image, top_tracks, created_at, updated_at
		FROM users
		ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var users []*models.CachedUser
	for rows.Next() {
		var (
			user      models.CachedUser
			topTracks string
		)

		err := rows.Scan(
			&user.ID, &user.Sequence, &user.DisplayName, &user.Followers,
			&user.Image, &topTracks, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}

		if err := json.Unmarshal([]byte(topTracks), &user.TopTracks); err != nil {
			return nil, fmt.Errorf("failed to decode cached top tracks: %w", err)
		}

		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}
