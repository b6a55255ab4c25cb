package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/scheduler"
)

const defaultSweepBatchSize = 100

type autoCompletePayload struct {
	OrderID string `json:"order_id"`
}

func autoCompleteKey(orderID string) string {
	return constants.JobAutoComplete + ":" + orderID
}

// JobRegistrar - планировщик, принимающий обработчики задач.
type JobRegistrar interface {
	OnFire(name string, h scheduler.Handler)
	Every(name string, interval time.Duration, fn func(ctx context.Context) error)
}

// RegisterJobs подключает фоновые задачи заказов к планировщику.
func RegisterJobs(r JobRegistrar, orders OrderServiceInterface, sweepInterval time.Duration) {
	r.OnFire(constants.JobAutoComplete, func(ctx context.Context, job scheduler.Job) error {
		var p autoCompletePayload
		if err := job.Decode(&p); err != nil {
			// битую задачу повторять бессмысленно
			return nil
		}
		return orders.HandleAutoComplete(ctx, p.OrderID)
	})
	r.Every(constants.JobProcessingSweep, sweepInterval, orders.SweepExpiredProcessing)
}

func (s *OrderService) scheduleAutoComplete(ctx context.Context, orderID string) error {
	err := s.scheduler.Schedule(ctx, constants.JobAutoComplete, autoCompleteKey(orderID),
		s.timings.AutoCompleteDelay, autoCompletePayload{OrderID: orderID})
	if err != nil {
		return apperrors.Unavailable("планирование автозавершения", err)
	}
	return nil
}

// HandleAutoComplete завершает доставленный заказ. Повторный вызов ничего не делает.
func (s *OrderService) HandleAutoComplete(ctx context.Context, orderID string) error {
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("автозавершение: заказ не найден", zap.String("orderID", orderID))
			return nil
		}
		return err
	}
	if order.Status != constants.OrderStatusDelivered {
		s.logger.Debug("автозавершение пропущено",
			zap.String("orderID", orderID), zap.String("status", order.Status.String()))
		return nil
	}

	err = s.commit(ctx, transition{
		order: order,
		to:    constants.OrderStatusCompleted,
		notes: "завершён автоматически",
		apply: func(tx pgx.Tx) error {
			return s.closeDeliveryAssignment(ctx, tx, order.ID)
		},
	})
	if errors.Is(err, apperrors.ErrConflict) {
		// статус сменился параллельно - задача больше не нужна
		return nil
	}
	return err
}

// closeDeliveryAssignment закрывает успехом назначение доставки, если водитель
// не успел подтвердить возврат до завершения заказа.
func (s *OrderService) closeDeliveryAssignment(ctx context.Context, tx pgx.Tx, orderID string) error {
	a, err := s.assignmentRepo.FindActive(ctx, tx, orderID, constants.PhaseDelivery)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	a.Outcome = constants.OutcomeSuccess
	a.InProgress = false
	a.CompletedAt = null.TimeFrom(s.now())
	return s.assignmentRepo.Update(ctx, tx, a, constants.OutcomeAssigned)
}

// SweepExpiredProcessing возвращает в PENDING заказы, зависшие в обработке дольше ProcessingClaimTTL.
// Ошибка по одному заказу не прерывает проход.
func (s *OrderService) SweepExpiredProcessing(ctx context.Context) error {
	limit := s.timings.SweepBatchSize
	if limit == 0 {
		limit = defaultSweepBatchSize
	}
	claims, err := s.processingRepo.FindExpired(ctx, s.now().Add(-s.timings.ProcessingClaimTTL), limit)
	if err != nil {
		return fmt.Errorf("поиск просроченных обработок: %w", err)
	}

	var expired int
	for i := range claims {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		claim := claims[i]
		if err := s.expireClaim(ctx, claim.ID, claim.OrderID); err != nil {
			s.logger.Error("не удалось снять просроченную обработку",
				zap.String("orderID", claim.OrderID), zap.Uint64("claimID", claim.ID), zap.Error(err))
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("просроченные обработки сняты", zap.Int("count", expired))
	}
	return nil
}

func (s *OrderService) expireClaim(ctx context.Context, claimID uint64, orderID string) error {
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return err
	}

	t := transition{
		order:  order,
		label:  constants.HistoryProcessingExpired,
		notes:  constants.ProcessingExpiredMsg,
		isFail: true,
		apply: func(tx pgx.Tx) error {
			return s.processingRepo.Resolve(ctx, tx, claimID, constants.ProcessingStatusFail, null.StringFrom(constants.ProcessingExpiredMsg))
		},
	}
	// заказ мог уйти из PROCESSING другим путём - тогда закрываем только запись обработки
	if order.Status == constants.OrderStatusProcessing {
		t.to = constants.OrderStatusPending
	}
	return s.commit(ctx, t)
}
