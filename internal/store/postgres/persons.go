package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-sentry/internal/store"
)

// UpsertPerson creates or refreshes a person record by name.
func (s *Store) UpsertPerson(ctx context.Context, name string, imageCount int) error {
	query := `
		INSERT INTO persons (name, image_count)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			image_count = EXCLUDED.image_count,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, name, imageCount); err != nil {
		return fmt.Errorf("upsert person %s: %w", name, err)
	}
	return nil
}

// RemovePerson deletes a person record by name.
func (s *Store) RemovePerson(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM persons WHERE name = $1", name); err != nil {
		return fmt.Errorf("remove person %s: %w", name, err)
	}
	return nil
}

// ListPersons returns all known people ordered by name.
func (s *Store) ListPersons(ctx context.Context) ([]store.Person, error) {
	query := `
		SELECT id, name, image_count, created_at, updated_at
		FROM persons
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var persons []store.Person
	for rows.Next() {
		var p store.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}
