// Copyright 2026 The CloudBDay Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cloudbday/cloudbday/internal/person"
)

// PersonRepository implements person.Repository
type PersonRepository struct {
	db *DB
}

// NewPersonRepository creates a new person repository
func NewPersonRepository(db *DB) *PersonRepository {
	return &PersonRepository{db: db}
}

const personColumns = `id, namespace, email, first_name, last_name,
	birth_day, birth_month, birth_year, receive_mail, directory_id,
	created_at, updated_at`

func scanPerson(row pgx.Row) (*person.Person, error) {
	var p person.Person
	err := row.Scan(
		&p.ID, &p.Namespace, &p.Email, &p.FirstName, &p.LastName,
		&p.BirthDay, &p.BirthMonth, &p.BirthYear, &p.ReceiveMail, &p.DirectoryID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PersonRepository) getOne(ctx context.Context, query string, args ...any) (*person.Person, error) {
	p, err := scanPerson(r.db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, person.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

func (r *PersonRepository) list(ctx context.Context, query string, args ...any) ([]*person.Person, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	people, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*person.Person, error) {
		return scanPerson(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan people: %w", err)
	}
	return people, nil
}

// Get retrieves a person by id within namespace
func (r *PersonRepository) Get(ctx context.Context, namespace, id string) (*person.Person, error) {
	return r.getOne(ctx, `SELECT `+personColumns+` FROM people WHERE namespace = $1 AND id = $2`, namespace, id)
}

// GetByEmail retrieves a person by email within namespace
func (r *PersonRepository) GetByEmail(ctx context.Context, namespace, email string) (*person.Person, error) {
	return r.getOne(ctx, `SELECT `+personColumns+` FROM people WHERE namespace = $1 AND email = lower($2)`, namespace, email)
}

// Create inserts a new person
func (r *PersonRepository) Create(ctx context.Context, p *person.Person) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO people (`+personColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.ID, p.Namespace, p.Email, p.FirstName, p.LastName,
		p.BirthDay, p.BirthMonth, p.BirthYear, p.ReceiveMail, p.DirectoryID,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	return nil
}

// Update writes every mutable field of p
func (r *PersonRepository) Update(ctx context.Context, p *person.Person) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE people SET
			first_name = $3, last_name = $4,
			birth_day = $5, birth_month = $6, birth_year = $7,
			receive_mail = $8, directory_id = $9, updated_at = $10
		WHERE namespace = $1 AND id = $2
	`,
		p.Namespace, p.ID, p.FirstName, p.LastName,
		p.BirthDay, p.BirthMonth, p.BirthYear,
		p.ReceiveMail, p.DirectoryID, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return person.ErrNotFound
	}
	return nil
}

const upsertPersonSQL = `
	INSERT INTO people (` + personColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (namespace, email) DO UPDATE SET
		first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), people.first_name),
		last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), people.last_name),
		birth_day = EXCLUDED.birth_day,
		birth_month = EXCLUDED.birth_month,
		birth_year = EXCLUDED.birth_year,
		updated_at = EXCLUDED.updated_at`

// UpsertMany writes people in a single batch inside one transaction
func (r *PersonRepository) UpsertMany(ctx context.Context, namespace string, people []*person.Person) error {
	if len(people) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range people {
		batch.Queue(upsertPersonSQL,
			p.ID, namespace, p.Email, p.FirstName, p.LastName,
			p.BirthDay, p.BirthMonth, p.BirthYear, p.ReceiveMail, p.DirectoryID,
			p.CreatedAt, p.UpdatedAt,
		)
	}

	return pgx.BeginFunc(ctx, r.db.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert people: %w", err)
		}
		return nil
	})
}

// Delete removes the person with email
func (r *PersonRepository) Delete(ctx context.Context, namespace, email string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM people WHERE namespace = $1 AND email = lower($2)`, namespace, email)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return person.ErrNotFound
	}
	return nil
}

// List returns every person of namespace ordered by email
func (r *PersonRepository) List(ctx context.Context, namespace string) ([]*person.Person, error) {
	return r.list(ctx, `SELECT `+personColumns+` FROM people WHERE namespace = $1 ORDER BY email`, namespace)
}

// ListByBirthday returns opted-in people born on month/day
func (r *PersonRepository) ListByBirthday(ctx context.Context, namespace string, month, day int) ([]*person.Person, error) {
	return r.list(ctx, `
		SELECT `+personColumns+` FROM people
		WHERE namespace = $1 AND receive_mail AND birth_month = $2 AND birth_day = $3
		ORDER BY email`, namespace, month, day)
}

// ListWithBirthday returns people with both month and day set
func (r *PersonRepository) ListWithBirthday(ctx context.Context, namespace string) ([]*person.Person, error) {
	return r.list(ctx, `
		SELECT `+personColumns+` FROM people
		WHERE namespace = $1 AND birth_month IS NOT NULL AND birth_day IS NOT NULL
		ORDER BY email`, namespace)
}
