package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
)

// ErrReferralNotFound is returned when a referral lookup misses.
var ErrReferralNotFound = errors.New("referral not found")

func scanReferral(row pgx.Row) (*model.Referral, error) {
	var ref model.Referral
	err := row.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredEmail, &ref.ReferredPhone,
		&ref.Converted, &ref.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("scan referral: %w", err)
	}
	return &ref, nil
}

// CreateReferral records an invitation sent by a user.
func (r *PostgresRepository) CreateReferral(ctx context.Context, referrerID int64, email, phone string) (*model.Referral, error) {
	return scanReferral(r.pool.QueryRow(ctx,
		`INSERT INTO referrals (referrer_id, referred_email, referred_phone)
		 VALUES ($1, $2, $3)
		 RETURNING id, referrer_id, referred_email, referred_phone, referral_converted, created_at`,
		referrerID, email, phone))
}

// FindReferralByEmail returns the oldest unconverted referral for an email.
func (r *PostgresRepository) FindReferralByEmail(ctx context.Context, email string) (*model.Referral, error) {
	return scanReferral(r.pool.QueryRow(ctx,
		`SELECT id, referrer_id, referred_email, referred_phone, referral_converted, created_at
		 FROM referrals
		 WHERE referred_email = $1 AND NOT referral_converted
		 ORDER BY created_at LIMIT 1`,
		email))
}

// FindReferralByPhone returns the oldest unconverted referral for a phone number.
func (r *PostgresRepository) FindReferralByPhone(ctx context.Context, phone string) (*model.Referral, error) {
	return scanReferral(r.pool.QueryRow(ctx,
		`SELECT id, referrer_id, referred_email, referred_phone, referral_converted, created_at
		 FROM referrals
		 WHERE referred_phone = $1 AND NOT referral_converted
		 ORDER BY created_at LIMIT 1`,
		phone))
}

// MarkReferralConverted flags a referral as converted.
func (r *PostgresRepository) MarkReferralConverted(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE referrals SET referral_converted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark referral converted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReferralNotFound
	}
	return nil
}

// GetReferralsByUser lists referrals sent by a user.
func (r *PostgresRepository) GetReferralsByUser(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, referrer_id, referred_email, referred_phone, referral_converted, created_at
		 FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`,
		referrerID)
	if err != nil {
		return nil, fmt.Errorf("select referrals: %w", err)
	}
	defer rows.Close()

	var refs []model.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, *ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return refs, nil
}
