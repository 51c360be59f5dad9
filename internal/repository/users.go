package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
)

const userColumns = `id, fname, lname, email, dob, country, phone, password_hash, points,
	business_id, referred_by, role, alleaves_customer_id, push_token, allow_notifications,
	premium, premium_start, premium_end, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var dob *time.Time
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &dob, &u.Country, &u.Phone,
		&u.PasswordHash, &u.Points, &u.BusinessID, &u.ReferredBy, &u.Role,
		&u.AlleavesCustomerID, &u.PushToken, &u.AllowNotifications,
		&u.Premium, &u.PremiumStart, &u.PremiumEnd, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if dob != nil {
		u.DOB = dob.Format("2006-01-02")
	}
	return &u, nil
}

// CreateUser inserts a new user and returns its id.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var dob *string
	if u.DOB != "" {
		dob = &u.DOB
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (fname, lname, email, dob, country, phone, password_hash, points, business_id, referred_by, role)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		u.FirstName, u.LastName, u.Email, dob, u.Country, u.Phone,
		u.PasswordHash, u.Points, u.BusinessID, u.ReferredBy, string(u.Role),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByID returns a user by primary key.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail returns a user by email within a business.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string, businessID int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND business_id = $2`,
		email, businessID)
	return scanUser(row)
}

// FindUserByEmail returns a user by email across businesses. Used by login,
// which verifies the business separately.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY id LIMIT 1`, email)
	return scanUser(row)
}

// GetUserByPhone matches a phone either exactly or by its last ten digits,
// scoped to a business.
func (r *PostgresRepository) GetUserByPhone(ctx context.Context, phone, normalized string, businessID int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE business_id = $3 AND (phone = $1 OR regexp_replace(phone, '\D', '', 'g') LIKE '%' || $2)
		 ORDER BY id LIMIT 1`,
		phone, normalized, businessID)
	return scanUser(row)
}

// FindUserByEmailOrPhone matches a user within a business by either contact field.
func (r *PostgresRepository) FindUserByEmailOrPhone(ctx context.Context, email, phone string, businessID int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE business_id = $3 AND ((email = $1 AND $1 <> '') OR (phone = $2 AND $2 <> ''))
		 ORDER BY id LIMIT 1`,
		email, phone, businessID)
	return scanUser(row)
}

// GetUsersByBusiness lists all users belonging to a business.
func (r *PostgresRepository) GetUsersByBusiness(ctx context.Context, businessID int64) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE business_id = $1 ORDER BY id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// DeleteUser removes a user by id.
func (r *PostgresRepository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UserUpdate carries optional fields for a partial user update. Nil fields
// are left unchanged. Points is intentionally absent: the balance is only
// mutated through CreditPoints and DebitPoints.
type UserUpdate struct {
	FirstName          *string
	LastName           *string
	Email              *string
	DOB                *string
	Country            *string
	Phone              *string
	BusinessID         *int64
	ReferredBy         *int64
	AllowNotifications *bool
	Premium            *bool
	PremiumStart       *time.Time
	PremiumEnd         *time.Time
}

// UpdateUser applies a partial update to a user.
func (r *PostgresRepository) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*model.User, error) {
	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.FirstName != nil {
		add("fname", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("lname", *upd.LastName)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.DOB != nil {
		add("dob", *upd.DOB)
	}
	if upd.Country != nil {
		add("country", *upd.Country)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.BusinessID != nil {
		add("business_id", *upd.BusinessID)
	}
	if upd.ReferredBy != nil {
		add("referred_by", *upd.ReferredBy)
	}
	if upd.AllowNotifications != nil {
		add("allow_notifications", *upd.AllowNotifications)
	}
	if upd.Premium != nil {
		add("premium", *upd.Premium)
	}
	if upd.PremiumStart != nil {
		add("premium_start", *upd.PremiumStart)
	}
	if upd.PremiumEnd != nil {
		add("premium_end", *upd.PremiumEnd)
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $1 RETURNING `+userColumns,
		strings.Join(set, ", "))

	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

// CreditPoints atomically increments a user's balance, scoped to a business.
// Returns the amount applied.
func (r *PostgresRepository) CreditPoints(ctx context.Context, userID, businessID, amount int64) (int64, error) {
	var applied int64
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET points = points + $3, updated_at = now()
			 WHERE id = $1 AND business_id = $2`,
			userID, businessID, amount)
		if err != nil {
			return fmt.Errorf("credit points: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		applied = amount
		return nil
	})
	return applied, err
}

// DebitPoints atomically decrements a user's balance, scoped to a business.
// The balance guard is part of the update itself, so concurrent debits can
// never drive the balance negative. Returns the amount applied.
func (r *PostgresRepository) DebitPoints(ctx context.Context, userID, businessID, amount int64) (int64, error) {
	var applied int64
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET points = points - $3, updated_at = now()
			 WHERE id = $1 AND business_id = $2 AND points >= $3`,
			userID, businessID, amount)
		if err != nil {
			return fmt.Errorf("debit points: %w", err)
		}
		if tag.RowsAffected() == 1 {
			applied = amount
			return nil
		}

		// Distinguish a missing user from an insufficient balance.
		var exists bool
		err = r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND business_id = $2)`,
			userID, businessID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrInsufficientPoints
	})
	return applied, err
}

// GetUserPushToken returns the stored device push token for a user.
func (r *PostgresRepository) GetUserPushToken(ctx context.Context, userID int64) (string, error) {
	var token *string
	err := r.pool.QueryRow(ctx,
		`SELECT push_token FROM users WHERE id = $1`, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("get push token: %w", err)
	}
	if token == nil {
		return "", nil
	}
	return *token, nil
}

// UpdateUserPushToken stores a device push token on the user matching the email.
func (r *PostgresRepository) UpdateUserPushToken(ctx context.Context, email, token string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET push_token = $2, updated_at = now() WHERE email = $1`,
		email, token)
	if err != nil {
		return fmt.Errorf("update push token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetAlleavesCustomerID records the POS customer id assigned to a user.
func (r *PostgresRepository) SetAlleavesCustomerID(ctx context.Context, userID int64, customerID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET alleaves_customer_id = $2, updated_at = now() WHERE id = $1`,
		userID, customerID)
	if err != nil {
		return fmt.Errorf("set alleaves customer id: %w", err)
	}
	return nil
}

// UpdatePassword replaces a user's password hash and clears any reset token.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash []byte) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, reset_token = NULL, reset_token_expiry = NULL, updated_at = now()
		 WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetResetToken stores a password reset token with its expiry.
func (r *PostgresRepository) SetResetToken(ctx context.Context, userID int64, token string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token = $2, reset_token_expiry = $3, updated_at = now() WHERE id = $1`,
		userID, token, expiry)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetUserByResetToken returns the user holding an unexpired reset token.
func (r *PostgresRepository) GetUserByResetToken(ctx context.Context, token string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE reset_token = $1 AND reset_token_expiry > now()`,
		token)
	return scanUser(row)
}

// ToggleNotifications flips the user's notification preference and returns
// the new setting.
func (r *PostgresRepository) ToggleNotifications(ctx context.Context, userID int64) (bool, error) {
	var enabled bool
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET allow_notifications = NOT allow_notifications, updated_at = now()
		 WHERE id = $1
		 RETURNING allow_notifications`,
		userID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("toggle notifications: %w", err)
	}
	return enabled, nil
}

// SetPremium updates a user's premium membership window.
func (r *PostgresRepository) SetPremium(ctx context.Context, userID int64, premium bool, start, end *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET premium = $2, premium_start = $3, premium_end = $4, updated_at = now()
		 WHERE id = $1`,
		userID, premium, start, end)
	if err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
