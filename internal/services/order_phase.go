package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"laundry-delivery/internal/authz"
	"laundry-delivery/internal/entities"
	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
)

func containsStatus(list []constants.OrderStatus, s constants.OrderStatus) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (s *OrderService) activeAssignment(ctx context.Context, op string, orderID string, phase constants.AssignmentPhase) (*entities.Assignment, error) {
	a, err := s.assignmentRepo.FindActive(ctx, nil, orderID, phase)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%s: нет активного назначения: %w", op, apperrors.ErrConflict)
		}
		return nil, err
	}
	return a, nil
}

// driverDenied - отказ водителю. Если заказ изменился, пока шла проверка,
// проигравший параллельный запрос получает Conflict, а не Forbidden.
func (s *OrderService) driverDenied(ctx context.Context, op string, order *entities.Order) error {
	if cur, err := s.orderRepo.FindByID(ctx, nil, order.ID); err == nil && cur.Version != order.Version {
		return statusConflict(op, cur)
	}
	return forbidden(op)
}

func (s *OrderService) AssignDriver(ctx context.Context, orderID string, adminID, driverID uint64, phase constants.AssignmentPhase) error {
	const op = "назначение водителя"
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	if !phase.Valid() {
		return apperrors.NewInvalidInputError("неизвестный этап: %s", phase)
	}
	if driverID == 0 {
		return apperrors.NewInvalidInputError("не указан водитель")
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	st := phase.Statuses()
	if !containsStatus(st.AssignableFrom, order.Status) || !constants.CanTransition(order.Status, st.Scheduled) {
		return statusConflict(op, order)
	}
	if phase == constants.PhaseDelivery {
		pickup, err := s.assignmentRepo.FindLatest(ctx, nil, order.ID, constants.PhasePickup)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if pickup == nil || pickup.Outcome != constants.OutcomeSuccess {
			return fmt.Errorf("%s: забор заказа %s не завершён: %w", op, order.ID, apperrors.ErrConflict)
		}
	}
	if !s.gate.HasRolePermission(ctx, adminID, authz.OrdersAssign) {
		return forbidden(op)
	}

	role, err := s.roles.GetRole(ctx, driverID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewInvalidInputError("пользователь %d не найден", driverID)
		}
		return err
	}
	if role != constants.RoleDriver {
		return apperrors.NewInvalidInputError("пользователь %d не является водителем", driverID)
	}

	now := s.now()
	return s.commit(ctx, transition{
		order:   order,
		to:      st.Scheduled,
		label:   constants.AssignStatus(phase, constants.OutcomeAssigned),
		notes:   fmt.Sprintf("водитель %d", driverID),
		actorID: adminID,
		apply: func(tx pgx.Tx) error {
			// повтор проверяется в пределах заказа и этапа. Назначения водителя на другие
			// заказы допустимы, один заказ в работе обеспечивает startPhase.
			prev, err := s.assignmentRepo.FindActive(ctx, tx, order.ID, phase)
			switch {
			case err == nil:
				if prev.AssignedTo == driverID {
					return fmt.Errorf("%s: водитель %d уже назначен: %w", op, driverID, apperrors.ErrConflict)
				}
				prev.Outcome = constants.OutcomeSuperseded
				prev.InProgress = false
				prev.CompletedAt = null.TimeFrom(now)
				if err := s.assignmentRepo.Update(ctx, tx, prev, constants.OutcomeAssigned); err != nil {
					return err
				}
			case !errors.Is(err, apperrors.ErrNotFound):
				return err
			}

			return s.assignmentRepo.Create(ctx, tx, &entities.Assignment{
				OrderID:    order.ID,
				AssignedTo: driverID,
				AssignedBy: adminID,
				Phase:      phase,
				Outcome:    constants.OutcomeAssigned,
			})
		},
	})
}

func (s *OrderService) StartPickup(ctx context.Context, orderID string, driverID uint64) error {
	return s.startPhase(ctx, orderID, driverID, constants.PhasePickup)
}

func (s *OrderService) StartDelivery(ctx context.Context, orderID string, driverID uint64) error {
	return s.startPhase(ctx, orderID, driverID, constants.PhaseDelivery)
}

// startPhase переводит заказ в PICKING_UP / DELIVERING. У водителя может быть
// только один заказ в активной фазе каждого этапа.
func (s *OrderService) startPhase(ctx context.Context, orderID string, driverID uint64, phase constants.AssignmentPhase) error {
	op := "начало этапа " + string(phase)
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	defer s.locks.Lock(orderLockKey(orderID), driverLockKey(driverID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	st := phase.Statuses()
	if order.Status != st.Scheduled {
		return statusConflict(op, order)
	}
	if !s.gate.CanDriverAct(ctx, order.ID, driverID, phase) {
		return s.driverDenied(ctx, op, order)
	}

	busy, err := s.assignmentRepo.HasOtherInProgress(ctx, nil, driverID, phase, order.ID)
	if err != nil {
		return err
	}
	if busy {
		s.logger.Info("водитель уже выполняет другой заказ",
			zap.Uint64("driverID", driverID), zap.String("orderID", order.ID), zap.String("phase", string(phase)))
		return fmt.Errorf("%s: у водителя %d уже есть заказ в работе: %w", op, driverID, apperrors.ErrConflict)
	}

	a, err := s.activeAssignment(ctx, op, order.ID, phase)
	if err != nil {
		return err
	}

	return s.commit(ctx, transition{
		order:   order,
		to:      st.Active,
		actorID: driverID,
		apply: func(tx pgx.Tx) error {
			a.InProgress = true
			a.StartedAt = null.TimeFrom(s.now())
			return s.assignmentRepo.Update(ctx, tx, a, constants.OutcomeAssigned)
		},
	})
}

func (s *OrderService) ConfirmPickedUp(ctx context.Context, orderID string, driverID uint64, notes string, photos []PhotoFile) error {
	return s.confirmDone(ctx, orderID, driverID, notes, photos, constants.PhasePickup)
}

func (s *OrderService) ConfirmDelivered(ctx context.Context, orderID string, driverID uint64, notes string, photos []PhotoFile) error {
	return s.confirmDone(ctx, orderID, driverID, notes, photos, constants.PhaseDelivery)
}

func (s *OrderService) confirmDone(ctx context.Context, orderID string, driverID uint64, notes string, photos []PhotoFile, phase constants.AssignmentPhase) error {
	op := "подтверждение этапа " + string(phase)
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	if len(photos) == 0 {
		return apperrors.NewInvalidInputError("нужно приложить хотя бы одно фото")
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	st := phase.Statuses()
	if order.Status != st.Active {
		return statusConflict(op, order)
	}
	if !s.gate.CanDriverAct(ctx, order.ID, driverID, phase) {
		return s.driverDenied(ctx, op, order)
	}
	a, err := s.activeAssignment(ctx, op, order.ID, phase)
	if err != nil {
		return err
	}

	urls, err := s.media.Upload(ctx, constants.ProofContext(phase), photos)
	if err != nil {
		return err
	}

	t := transition{
		order:   order,
		to:      st.Done,
		notes:   strings.TrimSpace(notes),
		actorID: driverID,
		photos:  urls,
		apply: func(tx pgx.Tx) error {
			a.InProgress = false
			return s.assignmentRepo.Update(ctx, tx, a, constants.OutcomeAssigned)
		},
	}
	if phase == constants.PhaseDelivery {
		t.finalize = func(ctx context.Context) error {
			return s.scheduleAutoComplete(ctx, order.ID)
		}
	}

	if err := s.commit(ctx, t); err != nil {
		s.media.Delete(ctx, urls)
		return err
	}
	return nil
}

func (s *OrderService) ConfirmPickupReturned(ctx context.Context, orderID string, driverID uint64) error {
	return s.confirmReturned(ctx, orderID, driverID, constants.PhasePickup)
}

func (s *OrderService) ConfirmDeliveryReturned(ctx context.Context, orderID string, driverID uint64) error {
	return s.confirmReturned(ctx, orderID, driverID, constants.PhaseDelivery)
}

// confirmReturned закрывает назначение успехом. Статус заказа не меняется.
func (s *OrderService) confirmReturned(ctx context.Context, orderID string, driverID uint64, phase constants.AssignmentPhase) error {
	op := "возврат с этапа " + string(phase)
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != phase.Statuses().Done {
		return statusConflict(op, order)
	}
	if !s.gate.CanDriverAct(ctx, order.ID, driverID, phase) {
		return s.driverDenied(ctx, op, order)
	}
	a, err := s.activeAssignment(ctx, op, order.ID, phase)
	if err != nil {
		return err
	}

	return s.commit(ctx, transition{
		order:   order,
		label:   constants.AssignStatus(phase, constants.OutcomeSuccess),
		actorID: driverID,
		apply: func(tx pgx.Tx) error {
			a.Outcome = constants.OutcomeSuccess
			a.InProgress = false
			a.CompletedAt = null.TimeFrom(s.now())
			return s.assignmentRepo.Update(ctx, tx, a, constants.OutcomeAssigned)
		},
	})
}

func (s *OrderService) CancelAssignedPickup(ctx context.Context, orderID string, driverID uint64, reason string, photos []PhotoFile) error {
	return s.cancelAssigned(ctx, orderID, driverID, reason, photos, constants.PhasePickup)
}

func (s *OrderService) CancelAssignedDelivery(ctx context.Context, orderID string, driverID uint64, reason string, photos []PhotoFile) error {
	return s.cancelAssigned(ctx, orderID, driverID, reason, photos, constants.PhaseDelivery)
}

// cancelAssigned - водитель не смог выполнить этап. Причина и фото обязательны
// и проверяются до любых обращений к хранилищу.
func (s *OrderService) cancelAssigned(ctx context.Context, orderID string, driverID uint64, reason string, photos []PhotoFile, phase constants.AssignmentPhase) error {
	op := "отмена этапа " + string(phase)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.NewInvalidInputError("укажите причину отмены")
	}
	if len(photos) == 0 {
		return apperrors.NewInvalidInputError("нужно приложить хотя бы одно фото")
	}
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	st := phase.Statuses()
	if order.Status != st.Scheduled && order.Status != st.Active {
		return statusConflict(op, order)
	}
	if !s.gate.CanDriverAct(ctx, order.ID, driverID, phase) {
		return s.driverDenied(ctx, op, order)
	}
	a, err := s.activeAssignment(ctx, op, order.ID, phase)
	if err != nil {
		return err
	}

	urls, err := s.media.Upload(ctx, constants.ProofContext(phase), photos)
	if err != nil {
		return err
	}

	err = s.commit(ctx, transition{
		order:   order,
		to:      st.Failed,
		label:   constants.AssignStatus(phase, constants.OutcomeFailed),
		notes:   reason,
		isFail:  true,
		actorID: driverID,
		photos:  urls,
		apply: func(tx pgx.Tx) error {
			a.Outcome = constants.OutcomeFailed
			a.InProgress = false
			a.Reason = null.StringFrom(reason)
			a.CompletedAt = null.TimeFrom(s.now())
			return s.assignmentRepo.Update(ctx, tx, a, constants.OutcomeAssigned)
		},
	})
	if err != nil {
		s.media.Delete(ctx, urls)
		return err
	}
	return nil
}
