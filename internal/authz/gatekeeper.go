package authz

import (
	"context"

	"go.uber.org/zap"

	"laundry-delivery/internal/repositories"
	"laundry-delivery/pkg/constants"
)

// RoleProvider - источник ролей пользователей.
type RoleProvider interface {
	GetRole(ctx context.Context, userID uint64) (constants.Role, error)
}

// Gatekeeper отвечает на вопрос "может ли пользователь действовать по заказу".
// Любая ошибка поиска трактуется как отказ и только логируется.
type Gatekeeper struct {
	orderRepo      repositories.OrderRepositoryInterface
	assignmentRepo repositories.AssignmentRepositoryInterface
	roles          RoleProvider
	logger         *zap.Logger
}

func NewGatekeeper(
	orderRepo repositories.OrderRepositoryInterface,
	assignmentRepo repositories.AssignmentRepositoryInterface,
	roles RoleProvider,
	logger *zap.Logger,
) *Gatekeeper {
	return &Gatekeeper{
		orderRepo:      orderRepo,
		assignmentRepo: assignmentRepo,
		roles:          roles,
		logger:         logger,
	}
}

// CanDriverAct - у пользователя есть активное (ASSIGNED) назначение на этап заказа,
// и заказ ещё не завершён и не отменён.
func (g *Gatekeeper) CanDriverAct(ctx context.Context, orderID string, userID uint64, phase constants.AssignmentPhase) bool {
	order, err := g.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		g.logger.Debug("CanDriverAct: заказ не найден", zap.String("orderID", orderID), zap.Error(err))
		return false
	}
	if order.Status.IsFinal() {
		return false
	}

	a, err := g.assignmentRepo.FindActive(ctx, nil, orderID, phase)
	if err != nil {
		g.logger.Debug("CanDriverAct: назначение не найдено",
			zap.String("orderID", orderID), zap.Uint64("userID", userID),
			zap.String("phase", string(phase)), zap.Error(err))
		return false
	}
	return a.AssignedTo == userID && a.Outcome == constants.OutcomeAssigned
}

// CanDriverActAny - водитель назначен хотя бы на один этап заказа.
func (g *Gatekeeper) CanDriverActAny(ctx context.Context, orderID string, userID uint64) bool {
	return g.CanDriverAct(ctx, orderID, userID, constants.PhasePickup) ||
		g.CanDriverAct(ctx, orderID, userID, constants.PhaseDelivery)
}

// CanCustomerView - пользователь является владельцем заказа.
func (g *Gatekeeper) CanCustomerView(ctx context.Context, orderID string, userID uint64) bool {
	order, err := g.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		g.logger.Debug("CanCustomerView: заказ не найден", zap.String("orderID", orderID), zap.Error(err))
		return false
	}
	return order.OwnerID == userID
}

// HasRolePermission проверяет действие по роли пользователя.
func (g *Gatekeeper) HasRolePermission(ctx context.Context, userID uint64, permission string) bool {
	role, err := g.roles.GetRole(ctx, userID)
	if err != nil {
		g.logger.Warn("не удалось получить роль пользователя", zap.Uint64("userID", userID), zap.Error(err))
		return false
	}
	return RoleCan(role, permission)
}

// CanTrack - пользователь может войти в комнату отслеживания заказа:
// назначенный водитель, владелец заказа или сотрудник.
func (g *Gatekeeper) CanTrack(ctx context.Context, orderID string, userID uint64) bool {
	return g.CanCustomerView(ctx, orderID, userID) ||
		g.CanDriverActAny(ctx, orderID, userID) ||
		g.HasRolePermission(ctx, userID, TrackingWatch)
}
