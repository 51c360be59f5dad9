package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
)

func scanBusiness(row pgx.Row) (*model.Business, error) {
	var b model.Business
	err := row.Scan(&b.ID, &b.Name, &b.Email, &b.APIKey, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("scan business: %w", err)
	}
	return &b, nil
}

// CreateBusiness inserts a new business and returns it.
func (r *PostgresRepository) CreateBusiness(ctx context.Context, name string) (*model.Business, error) {
	return scanBusiness(r.pool.QueryRow(ctx,
		`INSERT INTO businesses (name) VALUES ($1)
		 RETURNING id, name, email, api_key, created_at`,
		name))
}

// GetAllBusinesses lists every business.
func (r *PostgresRepository) GetAllBusinesses(ctx context.Context) ([]model.Business, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, api_key, created_at FROM businesses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select businesses: %w", err)
	}
	defer rows.Close()

	var businesses []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		businesses = append(businesses, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return businesses, nil
}

// GetBusinessByID returns a business by primary key.
func (r *PostgresRepository) GetBusinessByID(ctx context.Context, id int64) (*model.Business, error) {
	return scanBusiness(r.pool.QueryRow(ctx,
		`SELECT id, name, email, api_key, created_at FROM businesses WHERE id = $1`, id))
}

// GetBusinessByNameAndID verifies the business profile presented at login.
func (r *PostgresRepository) GetBusinessByNameAndID(ctx context.Context, id int64, name string) (*model.Business, error) {
	return scanBusiness(r.pool.QueryRow(ctx,
		`SELECT id, name, email, api_key, created_at FROM businesses WHERE id = $1 AND name = $2`,
		id, name))
}

// DeleteBusiness removes a business by id.
func (r *PostgresRepository) DeleteBusiness(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete business: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBusinessNotFound
	}
	return nil
}

// BusinessUpdate carries optional fields for a partial business update.
type BusinessUpdate struct {
	Name   *string
	Email  *string
	APIKey *string
}

// UpdateBusiness applies a partial update to a business.
func (r *PostgresRepository) UpdateBusiness(ctx context.Context, id int64, upd BusinessUpdate) (*model.Business, error) {
	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.APIKey != nil {
		add("api_key", *upd.APIKey)
	}

	query := fmt.Sprintf(
		`UPDATE businesses SET %s WHERE id = $1 RETURNING id, name, email, api_key, created_at`,
		strings.Join(set, ", "))

	return scanBusiness(r.pool.QueryRow(ctx, query, args...))
}
