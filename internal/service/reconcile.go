package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/pos"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
)

const (
	// reconcileFetchLimit bounds concurrent POS status fetches in one pass.
	reconcileFetchLimit = 8
	// posFetchTimeout bounds a single status fetch so one stalled order
	// cannot block the whole pass.
	posFetchTimeout = 10 * time.Second
	// reconcileBatchSize caps the orders picked up by a full sweep.
	reconcileBatchSize = 100
)

// ReconcileUserOrders polls the POS for a user's unsettled orders and
// settles every order newly reported complete. The raw statuses fetched are
// returned for caller visibility regardless of settlement outcome.
func (s *Service) ReconcileUserOrders(ctx context.Context, userID int64) ([]pos.OrderStatus, error) {
	orders, err := s.repo.GetUnsettledOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, orders), nil
}

// ReconcileAllOrders runs one reconciliation pass over unsettled orders
// across all users.
func (s *Service) ReconcileAllOrders(ctx context.Context) ([]pos.OrderStatus, error) {
	orders, err := s.repo.GetUnsettledOrders(ctx, reconcileBatchSize)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, orders), nil
}

// reconcile fetches POS statuses concurrently, then settles completed
// orders one at a time. The two phases are deliberately separate: the fetch
// fan-out is side-effect free, so a failure there loses nothing, and each
// settlement is a single transaction, so a crash mid-pass leaves at most
// one order un-awarded and retryable.
func (s *Service) reconcile(ctx context.Context, orders []model.Order) []pos.OrderStatus {
	if len(orders) == 0 || s.providers == nil {
		return nil
	}

	tokens := s.fetchTokens(ctx, orders)

	results := make([]*pos.OrderStatus, len(orders))
	g, fetchCtx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileFetchLimit)

	for i := range orders {
		o := orders[i]
		token, ok := tokens[o.BusinessID]
		if !ok {
			continue
		}

		idx := i
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(fetchCtx, posFetchTimeout)
			defer cancel()

			status, err := s.providers.For(o.BusinessID).FetchOrderStatus(callCtx, token, o.PosOrderID)
			if err != nil {
				// Status unknown this pass; the order stays pending and
				// its siblings keep going.
				s.logger.Warn("pos status fetch failed",
					zap.Int64("orderID", o.ID),
					zap.String("posOrderID", o.PosOrderID),
					zap.Error(err))
				return nil
			}
			results[idx] = status
			return nil
		})
	}
	_ = g.Wait()

	statuses := make([]pos.OrderStatus, 0, len(orders))
	for i, status := range results {
		if status == nil {
			continue
		}
		statuses = append(statuses, *status)

		if !status.Complete {
			continue
		}
		s.settleOrder(ctx, orders[i])
	}

	return statuses
}

// fetchTokens authenticates once per business present in the batch. A
// failed exchange leaves the business out of the map, so its orders are
// skipped this pass rather than misread as incomplete.
func (s *Service) fetchTokens(ctx context.Context, orders []model.Order) map[int64]string {
	tokens := make(map[int64]string)
	for _, o := range orders {
		if _, done := tokens[o.BusinessID]; done {
			continue
		}

		provider := s.providers.For(o.BusinessID)
		if provider == nil {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, posFetchTimeout)
		token, err := provider.FetchToken(callCtx)
		cancel()
		if err != nil {
			s.logger.Error("pos authentication failed",
				zap.Int64("businessID", o.BusinessID),
				zap.Error(err))
			continue
		}
		tokens[o.BusinessID] = token
	}
	return tokens
}

func (s *Service) settleOrder(ctx context.Context, o model.Order) {
	res, err := s.repo.SettleOrder(ctx, o.ID)
	if err != nil {
		// An order that keeps failing here (for example a redeem against a
		// separately drained balance) stays unsettled and resurfaces every
		// pass, so the log line is the signal to watch.
		if errors.Is(err, repository.ErrInsufficientPoints) {
			s.logger.Warn("order settlement blocked by insufficient points, will retry",
				zap.Int64("orderID", o.ID),
				zap.Int64("userID", o.UserID),
				zap.Int64("pointsRedeem", o.PointsRedeem))
			return
		}
		s.logger.Error("order settlement failed",
			zap.Int64("orderID", o.ID),
			zap.Error(err))
		return
	}

	if res.AlreadyAwarded {
		return
	}

	s.logger.Info("order settled",
		zap.Int64("orderID", o.ID),
		zap.Int64("userID", o.UserID),
		zap.Int64("pointsCredited", res.PointsCredited),
		zap.Int64("pointsDebited", res.PointsDebited))
}

// StartReconcileUpdates launches the background sweep that reconciles
// unsettled orders and purges expired sessions on a fixed interval until
// the context is cancelled.
func (s *Service) StartReconcileUpdates(ctx context.Context, interval time.Duration) {
	if s.providers == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ReconcileAllOrders(ctx); err != nil {
					s.logger.Error("background reconciliation failed", zap.Error(err))
				}
				if n, err := s.repo.DeleteExpiredSessions(ctx); err != nil {
					s.logger.Error("session cleanup failed", zap.Error(err))
				} else if n > 0 {
					s.logger.Info("expired sessions removed", zap.Int64("count", n))
				}
			}
		}
	}()
}
