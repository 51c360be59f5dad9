package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
)

// ErrConflictingPoints is returned when an order tries to both earn and
// redeem points at once.
var ErrConflictingPoints = errors.New("order cannot both earn and redeem points")

// CreateOrderInput carries a checkout request.
type CreateOrderInput struct {
	UserID       int64
	EmployeeID   *int64
	PosOrderID   string
	PointsAdd    float64
	PointsRedeem float64
	TotalAmount  float64
	Items        []model.OrderItem
}

// CreateOrder records a checkout. An order either earns points (settled by
// reconciliation once the POS reports it complete) or redeems them (debited
// immediately so the balance cannot be spent twice), never both.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if in.UserID == 0 {
		return nil, ErrInvalidInput
	}
	if in.PointsAdd > 0 && in.PointsRedeem > 0 {
		return nil, ErrConflictingPoints
	}

	pointsAdd, err := flooredPoints(in.PointsAdd)
	if err != nil {
		return nil, err
	}
	pointsRedeem, err := flooredPoints(in.PointsRedeem)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		UserID:       user.ID,
		EmployeeID:   in.EmployeeID,
		PosOrderID:   in.PosOrderID,
		PointsAdd:    pointsAdd,
		PointsRedeem: pointsRedeem,
		TotalAmount:  in.TotalAmount,
		BusinessID:   user.BusinessID,
		Items:        in.Items,
	}
	return s.repo.CreateOrder(ctx, order)
}

// flooredPoints floors a non-negative point amount. Unlike normalizeAmount
// a zero is valid here: an order may carry no points action at all.
func flooredPoints(amount float64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: negative point amount", ErrInvalidAmount)
	}
	return int64(math.Floor(amount)), nil
}

// GetOrderByID returns one order with its items.
func (s *Service) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

// GetOrdersByBusiness lists all orders of a business.
func (s *Service) GetOrdersByBusiness(ctx context.Context, businessID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByBusiness(ctx, businessID)
}

// GetOrdersByUser lists a user's orders.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetPendingOrdersByUser lists a user's orders still awaiting POS completion.
func (s *Service) GetPendingOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetUnsettledOrdersByUser(ctx, userID)
}
