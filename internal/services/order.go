package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"laundry-delivery/internal/authz"
	"laundry-delivery/internal/dto"
	"laundry-delivery/internal/entities"
	"laundry-delivery/internal/events"
	"laundry-delivery/internal/repositories"
	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/eventbus"
	"laundry-delivery/pkg/keylock"
)

// JobScheduler - отложенные задачи с отменой по ключу.
type JobScheduler interface {
	Schedule(ctx context.Context, name, key string, delay time.Duration, payload interface{}) error
	Cancel(ctx context.Context, key string) error
}

// PermissionGate - проверки доступа к заказу. Ошибки поиска трактуются как отказ.
type PermissionGate interface {
	CanDriverAct(ctx context.Context, orderID string, userID uint64, phase constants.AssignmentPhase) bool
	CanCustomerView(ctx context.Context, orderID string, userID uint64) bool
	HasRolePermission(ctx context.Context, userID uint64, permission string) bool
	CanTrack(ctx context.Context, orderID string, userID uint64) bool
}

type EventPublisher interface {
	Publish(ctx context.Context, event eventbus.Event)
}

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, ownerID uint64, data dto.CreateOrderDTO) (*entities.Order, error)
	SubmitOrder(ctx context.Context, orderID string, customerID uint64) error
	ClaimForProcessing(ctx context.Context, orderID string, staffID uint64) error
	ConfirmProcessing(ctx context.Context, orderID string, staffID uint64, notes string) error
	CancelOrder(ctx context.Context, orderID string, staffID uint64, notes string) error
	CompleteOrder(ctx context.Context, orderID string, customerID uint64) error

	AssignDriver(ctx context.Context, orderID string, adminID, driverID uint64, phase constants.AssignmentPhase) error
	StartPickup(ctx context.Context, orderID string, driverID uint64) error
	StartDelivery(ctx context.Context, orderID string, driverID uint64) error
	ConfirmPickedUp(ctx context.Context, orderID string, driverID uint64, notes string, photos []PhotoFile) error
	ConfirmDelivered(ctx context.Context, orderID string, driverID uint64, notes string, photos []PhotoFile) error
	ConfirmPickupReturned(ctx context.Context, orderID string, driverID uint64) error
	ConfirmDeliveryReturned(ctx context.Context, orderID string, driverID uint64) error
	CancelAssignedPickup(ctx context.Context, orderID string, driverID uint64, reason string, photos []PhotoFile) error
	CancelAssignedDelivery(ctx context.Context, orderID string, driverID uint64, reason string, photos []PhotoFile) error

	GetOrder(ctx context.Context, orderID string, userID uint64) (*entities.Order, error)
	GetHistory(ctx context.Context, orderID string, userID uint64) ([]entities.OrderHistory, error)
	GetAssignments(ctx context.Context, orderID string, userID uint64) ([]entities.Assignment, error)

	SweepExpiredProcessing(ctx context.Context) error
	HandleAutoComplete(ctx context.Context, orderID string) error
}

// OrderTimings - задержки фоновых задач заказа.
type OrderTimings struct {
	AutoCompleteDelay  time.Duration
	ProcessingClaimTTL time.Duration
	SweepBatchSize     uint64
}

type OrderService struct {
	txManager      repositories.TxManagerInterface
	orderRepo      repositories.OrderRepositoryInterface
	assignmentRepo repositories.AssignmentRepositoryInterface
	processingRepo repositories.OrderProcessingRepositoryInterface
	historyRepo    repositories.OrderHistoryRepositoryInterface
	roles          authz.RoleProvider
	gate           PermissionGate
	media          MediaServiceInterface
	scheduler      JobScheduler
	publisher      EventPublisher
	locks          *keylock.KeyLock
	timings        OrderTimings
	logger         *zap.Logger
	now            func() time.Time
}

func NewOrderService(
	txManager repositories.TxManagerInterface,
	orderRepo repositories.OrderRepositoryInterface,
	assignmentRepo repositories.AssignmentRepositoryInterface,
	processingRepo repositories.OrderProcessingRepositoryInterface,
	historyRepo repositories.OrderHistoryRepositoryInterface,
	roles authz.RoleProvider,
	gate PermissionGate,
	media MediaServiceInterface,
	scheduler JobScheduler,
	publisher EventPublisher,
	locks *keylock.KeyLock,
	timings OrderTimings,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		txManager:      txManager,
		orderRepo:      orderRepo,
		assignmentRepo: assignmentRepo,
		processingRepo: processingRepo,
		historyRepo:    historyRepo,
		roles:          roles,
		gate:           gate,
		media:          media,
		scheduler:      scheduler,
		publisher:      publisher,
		locks:          locks,
		timings:        timings,
		logger:         logger,
		now:            time.Now,
	}
}

func orderLockKey(orderID string) string   { return "order:" + orderID }
func driverLockKey(driverID uint64) string { return fmt.Sprintf("driver:%d", driverID) }

func newOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("LD-%s-%s", now.Format("20060102"), suffix)
}

func statusConflict(op string, o *entities.Order) error {
	return fmt.Errorf("%s: заказ %s в статусе %s: %w", op, o.ID, o.Status, apperrors.ErrConflict)
}

func forbidden(op string) error {
	return fmt.Errorf("%s: %w", op, apperrors.ErrForbidden)
}

func requireOrderID(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return apperrors.NewInvalidInputError("не указан номер заказа")
	}
	return nil
}

// transition - одна атомарная смена состояния заказа с записью в историю.
type transition struct {
	order *entities.Order
	// to пустой - статус заказа не меняется (например, возврат водителя).
	to      constants.OrderStatus
	label   string
	notes   string
	isFail  bool
	actorID uint64
	photos  []string
	// apply выполняется в транзакции до смены статуса.
	apply func(tx pgx.Tx) error
	// finalize выполняется в транзакции последним шагом.
	finalize func(ctx context.Context) error
}

func (s *OrderService) commit(ctx context.Context, t transition) error {
	from := t.order.Status
	label := t.label
	if label == "" {
		label = t.to.String()
	}

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if t.apply != nil {
			if err := t.apply(tx); err != nil {
				return err
			}
		}
		if t.to != "" {
			if err := s.orderRepo.UpdateStatus(ctx, tx, t.order.ID, t.order.Version, from, t.to); err != nil {
				return err
			}
		}
		entry := &entities.OrderHistory{
			OrderID:   t.order.ID,
			Status:    label,
			Notes:     null.NewString(t.notes, t.notes != ""),
			IsFail:    t.isFail,
			ActorID:   null.NewUint64(t.actorID, t.actorID != 0),
			PhotoURLs: t.photos,
		}
		if err := s.historyRepo.CreateInTx(ctx, tx, entry); err != nil {
			return err
		}
		if t.finalize != nil {
			return t.finalize(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	actor := zap.Uint64("actorID", t.actorID)
	if t.actorID == 0 {
		actor = zap.String("actor", constants.SystemActorName)
	}
	s.logger.Info("Переход заказа выполнен",
		zap.String("orderID", t.order.ID),
		zap.String("from", from.String()),
		zap.String("label", label),
		actor,
	)

	if t.to == "" {
		return nil
	}
	t.order.Version++
	if t.to == from {
		return nil
	}
	t.order.Status = t.to
	s.publisher.Publish(ctx, events.OrderStatusChangedEvent{
		OrderID:  t.order.ID,
		From:     from,
		To:       t.to,
		ActorID:  t.actorID,
		Occurred: s.now(),
	})
	return nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderID string) (*entities.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("не удалось загрузить заказ", zap.String("orderID", orderID), zap.Error(err))
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) CreateOrder(ctx context.Context, ownerID uint64, data dto.CreateOrderDTO) (*entities.Order, error) {
	if ownerID == 0 {
		return nil, apperrors.ErrUnauthorized
	}

	order := &entities.Order{
		ID:              newOrderID(s.now()),
		OwnerID:         ownerID,
		PickupAddress:   data.PickupAddress,
		PickupLat:       data.PickupLat,
		PickupLng:       data.PickupLng,
		DeliveryAddress: data.DeliveryAddress,
		DeliveryLat:     data.DeliveryLat,
		DeliveryLng:     data.DeliveryLng,
		Status:          constants.OrderStatusInCart,
		Emergency:       data.Emergency,
	}

	err := s.commit(ctx, transition{
		order:   order,
		label:   constants.OrderStatusInCart.String(),
		actorID: ownerID,
		apply: func(tx pgx.Tx) error {
			return s.orderRepo.Create(ctx, tx, order)
		},
	})
	if err != nil {
		s.logger.Error("Ошибка при создании заказа", zap.Uint64("ownerID", ownerID), zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (s *OrderService) SubmitOrder(ctx context.Context, orderID string, customerID uint64) error {
	const op = "оформление заказа"
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !constants.CanTransition(order.Status, constants.OrderStatusPending) {
		return statusConflict(op, order)
	}
	if order.OwnerID != customerID {
		return forbidden(op)
	}

	return s.commit(ctx, transition{order: order, to: constants.OrderStatusPending, actorID: customerID})
}

func (s *OrderService) ClaimForProcessing(ctx context.Context, orderID string, staffID uint64) error {
	const op = "взятие заказа в обработку"
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !constants.CanTransition(order.Status, constants.OrderStatusProcessing) {
		return statusConflict(op, order)
	}
	if !s.gate.HasRolePermission(ctx, staffID, authz.OrdersClaim) {
		return forbidden(op)
	}

	return s.commit(ctx, transition{
		order:   order,
		to:      constants.OrderStatusProcessing,
		actorID: staffID,
		apply: func(tx pgx.Tx) error {
			return s.processingRepo.Create(ctx, tx, &entities.OrderProcessing{
				OrderID: order.ID,
				StaffID: staffID,
				Status:  constants.ProcessingStatusProcessing,
			})
		},
	})
}

func (s *OrderService) ConfirmProcessing(ctx context.Context, orderID string, staffID uint64, notes string) error {
	const op = "подтверждение заказа"
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != constants.OrderStatusProcessing {
		return statusConflict(op, order)
	}
	if !s.gate.HasRolePermission(ctx, staffID, authz.OrdersConfirm) {
		return forbidden(op)
	}

	claim, err := s.processingRepo.FindActive(ctx, nil, order.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%s: нет активной обработки: %w", op, apperrors.ErrConflict)
		}
		return err
	}
	if claim.StaffID != staffID {
		return fmt.Errorf("%s: заказ обрабатывает другой сотрудник: %w", op, apperrors.ErrForbidden)
	}

	return s.commit(ctx, transition{
		order:   order,
		to:      constants.OrderStatusConfirmed,
		notes:   notes,
		actorID: staffID,
		apply: func(tx pgx.Tx) error {
			return s.processingRepo.Resolve(ctx, tx, claim.ID, constants.ProcessingStatusSuccess, null.String{})
		},
	})
}

func (s *OrderService) CancelOrder(ctx context.Context, orderID string, staffID uint64, notes string) error {
	const op = "отмена заказа"
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return apperrors.NewInvalidInputError("укажите причину отмены")
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !constants.CanTransition(order.Status, constants.OrderStatusCancelled) {
		return statusConflict(op, order)
	}
	if !s.gate.HasRolePermission(ctx, staffID, authz.OrdersCancel) {
		return forbidden(op)
	}

	return s.commit(ctx, transition{
		order:   order,
		to:      constants.OrderStatusCancelled,
		notes:   notes,
		isFail:  true,
		actorID: staffID,
		apply: func(tx pgx.Tx) error {
			if order.Status != constants.OrderStatusProcessing {
				return nil
			}
			claim, err := s.processingRepo.FindActive(ctx, tx, order.ID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return nil
				}
				return err
			}
			return s.processingRepo.Resolve(ctx, tx, claim.ID, constants.ProcessingStatusFail, null.StringFrom(notes))
		},
	})
}

// CompleteOrder - клиент подтверждает получение раньше автоматического завершения.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID string, customerID uint64) error {
	const op = "завершение заказа"
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	defer s.locks.Lock(orderLockKey(orderID))()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !constants.CanTransition(order.Status, constants.OrderStatusCompleted) {
		return statusConflict(op, order)
	}
	if !s.gate.CanCustomerView(ctx, order.ID, customerID) {
		return forbidden(op)
	}

	err = s.commit(ctx, transition{
		order:   order,
		to:      constants.OrderStatusCompleted,
		actorID: customerID,
		apply: func(tx pgx.Tx) error {
			return s.closeDeliveryAssignment(ctx, tx, order.ID)
		},
	})
	if err != nil {
		return err
	}
	if err := s.scheduler.Cancel(ctx, autoCompleteKey(order.ID)); err != nil {
		// задача всё равно ничего не сделает: заказ уже не в DELIVERED
		s.logger.Warn("не удалось отменить автозавершение", zap.String("orderID", order.ID), zap.Error(err))
	}
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string, userID uint64) (*entities.Order, error) {
	if err := requireOrderID(orderID); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanTrack(ctx, order.ID, userID) {
		return nil, forbidden("просмотр заказа")
	}
	return order, nil
}

func (s *OrderService) GetHistory(ctx context.Context, orderID string, userID uint64) ([]entities.OrderHistory, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.historyRepo.FindByOrderID(ctx, orderID)
}

func (s *OrderService) GetAssignments(ctx context.Context, orderID string, userID uint64) ([]entities.Assignment, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.assignmentRepo.FindByOrderID(ctx, orderID)
}
