package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
)

const orderColumns = `id, user_id, employee_id, pos_order_id, points_add, points_redeem,
	points_locked, total_amount, business_id, complete, points_awarded, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.EmployeeID, &o.PosOrderID, &o.PointsAdd, &o.PointsRedeem,
		&o.PointsLocked, &o.TotalAmount, &o.BusinessID, &o.Complete, &o.PointsAwarded,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

// CreateOrder persists an order with its items. When the order redeems
// points, the debit happens inside the same transaction and the amount is
// recorded as points_locked: redeemed points leave the balance at checkout,
// before the POS confirms completion, so the same points cannot be spent on
// a second in-flight order. Earned points wait for reconciliation.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	pointsLocked := int64(0)
	pointsAwarded := false
	if o.PointsRedeem > 0 {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET points = points - $3, updated_at = now()
			 WHERE id = $1 AND business_id = $2 AND points >= $3`,
			o.UserID, o.BusinessID, o.PointsRedeem)
		if err != nil {
			return nil, fmt.Errorf("debit redeemed points: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND business_id = $2)`,
				o.UserID, o.BusinessID).Scan(&exists); err != nil {
				return nil, fmt.Errorf("check user: %w", err)
			}
			if !exists {
				return nil, ErrUserNotFound
			}
			return nil, ErrInsufficientPoints
		}
		pointsLocked = o.PointsRedeem
		// The debit is the award for a redeem order; reconciliation must
		// only flip the completion flag, never debit again.
		pointsAwarded = true
	}

	created := *o
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, employee_id, pos_order_id, points_add, points_redeem,
			points_locked, total_amount, business_id, points_awarded)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, complete, points_awarded, created_at, updated_at`,
		o.UserID, o.EmployeeID, o.PosOrderID, o.PointsAdd, o.PointsRedeem,
		pointsLocked, o.TotalAmount, o.BusinessID, pointsAwarded,
	).Scan(&created.ID, &created.Complete, &created.PointsAwarded, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	created.PointsLocked = pointsLocked

	for i := range o.Items {
		it := &o.Items[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, item_id, title, brand, category, price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			created.ID, it.ItemID, it.Title, it.Brand, it.Category, it.Price, it.Quantity,
		).Scan(&it.ID)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		it.OrderID = created.ID
	}
	created.Items = o.Items

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &created, nil
}

// GetOrderByID returns an order with its items.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*model.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrdersByBusiness lists all orders of a business, newest first.
func (r *PostgresRepository) GetOrdersByBusiness(ctx context.Context, businessID int64) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE business_id = $1 ORDER BY created_at DESC`,
		businessID)
}

// GetOrdersByUser lists a user's orders, newest first.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

// GetUnsettledOrdersByUser lists a user's orders still awaiting POS completion.
func (r *PostgresRepository) GetUnsettledOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND NOT complete AND pos_order_id <> ''
		 ORDER BY created_at`,
		userID)
}

// GetUnsettledOrders lists orders awaiting POS completion across all users.
func (r *PostgresRepository) GetUnsettledOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE NOT complete AND pos_order_id <> ''
		 ORDER BY created_at
		 LIMIT $1`,
		limit)
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) attachItems(ctx context.Context, orders []*model.Order) error {
	for _, o := range orders {
		rows, err := r.pool.Query(ctx,
			`SELECT id, order_id, item_id, title, brand, category, price, quantity
			 FROM order_items WHERE order_id = $1 ORDER BY id`,
			o.ID)
		if err != nil {
			return fmt.Errorf("select order items: %w", err)
		}

		for rows.Next() {
			var it model.OrderItem
			if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Title, &it.Brand,
				&it.Category, &it.Price, &it.Quantity); err != nil {
				rows.Close()
				return fmt.Errorf("scan order item: %w", err)
			}
			o.Items = append(o.Items, it)
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
	}
	return nil
}

// SettlementResult reports what a settlement transaction did.
type SettlementResult struct {
	AlreadyAwarded bool
	PointsCredited int64
	PointsDebited  int64
}

// SettleOrder marks an order complete and applies its points action exactly
// once. The order row is locked for the whole read-act-write sequence, so
// two overlapping reconciliation passes cannot both award the same order:
// the loser of the lock re-reads points_awarded = true and only corrects the
// completion flag.
func (r *PostgresRepository) SettleOrder(ctx context.Context, orderID int64) (*SettlementResult, error) {
	var res SettlementResult

	err := r.withRetry(ctx, func() error {
		res = SettlementResult{}

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var (
			userID, businessID      int64
			pointsAdd, pointsRedeem int64
			pointsAwarded           bool
		)
		err = tx.QueryRow(ctx,
			`SELECT user_id, business_id, points_add, points_redeem, points_awarded
			 FROM orders WHERE id = $1 FOR UPDATE`,
			orderID,
		).Scan(&userID, &businessID, &pointsAdd, &pointsRedeem, &pointsAwarded)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if pointsAwarded {
			if _, err := tx.Exec(ctx,
				`UPDATE orders SET complete = TRUE, updated_at = now()
				 WHERE id = $1 AND NOT complete`,
				orderID); err != nil {
				return fmt.Errorf("correct completion flag: %w", err)
			}
			res.AlreadyAwarded = true
			return tx.Commit(ctx)
		}

		switch {
		case pointsAdd > 0:
			tag, err := tx.Exec(ctx,
				`UPDATE users SET points = points + $3, updated_at = now()
				 WHERE id = $1 AND business_id = $2`,
				userID, businessID, pointsAdd)
			if err != nil {
				return fmt.Errorf("credit points: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrUserNotFound
			}
			res.PointsCredited = pointsAdd

		case pointsRedeem > 0:
			tag, err := tx.Exec(ctx,
				`UPDATE users SET points = points - $3, updated_at = now()
				 WHERE id = $1 AND business_id = $2 AND points >= $3`,
				userID, businessID, pointsRedeem)
			if err != nil {
				return fmt.Errorf("debit points: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrInsufficientPoints
			}
			res.PointsDebited = pointsRedeem
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET complete = TRUE, points_awarded = TRUE, updated_at = now()
			 WHERE id = $1`,
			orderID); err != nil {
			return fmt.Errorf("mark order settled: %w", err)
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}
