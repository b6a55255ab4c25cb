package controllers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"laundry-delivery/internal/dto"
	"laundry-delivery/internal/services"
	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/utils"
)

type OrderController struct {
	orderService services.OrderServiceInterface
	logger       *zap.Logger
}

func NewOrderController(
	orderService services.OrderServiceInterface,
	logger *zap.Logger,
) *OrderController {
	return &OrderController{
		orderService: orderService,
		logger:       logger,
	}
}

// actor - текущий пользователь, записанный AuthMiddleware.
func (c *OrderController) actor(ctx echo.Context) (uint64, error) {
	userID, err := utils.GetUserIDFromCtx(ctx.Request().Context())
	if err != nil {
		c.logger.Error("не удалось получить userID из контекста", zap.Error(err))
		return 0, err
	}
	return userID, nil
}

func bindAndValidate(ctx echo.Context, v interface{}) error {
	if err := ctx.Bind(v); err != nil {
		return apperrors.NewHttpError(http.StatusBadRequest, "некорректное тело запроса", nil, nil)
	}
	return ctx.Validate(v)
}

func (c *OrderController) CreateOrder(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var data dto.CreateOrderDTO
	if err := bindAndValidate(ctx, &data); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	order, err := c.orderService.CreateOrder(ctx.Request().Context(), userID, data)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, dto.NewOrderResponse(order), "Заказ создан", http.StatusCreated)
}

func (c *OrderController) SubmitOrder(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.orderService.SubmitOrder(ctx.Request().Context(), ctx.Param("id"), userID); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Заказ оформлен", http.StatusOK)
}

func (c *OrderController) ClaimOrder(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.orderService.ClaimForProcessing(ctx.Request().Context(), ctx.Param("id"), userID); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Заказ взят в обработку", http.StatusOK)
}

func (c *OrderController) ConfirmOrder(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var data dto.NotesDTO
	if err := bindAndValidate(ctx, &data); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.orderService.ConfirmProcessing(ctx.Request().Context(), ctx.Param("id"), userID, data.Notes); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Заказ подтверждён", http.StatusOK)
}

func (c *OrderController) CancelOrder(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var data dto.CancelOrderDTO
	if err := bindAndValidate(ctx, &data); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.orderService.CancelOrder(ctx.Request().Context(), ctx.Param("id"), userID, data.Notes); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Заказ отменён", http.StatusOK)
}

func (c *OrderController) CompleteOrder(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.orderService.CompleteOrder(ctx.Request().Context(), ctx.Param("id"), userID); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Заказ завершён", http.StatusOK)
}

func (c *OrderController) AssignDriver(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var data dto.AssignDriverDTO
	if err := bindAndValidate(ctx, &data); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	phase := constants.AssignmentPhase(strings.ToUpper(data.Phase))
	if err := c.orderService.AssignDriver(ctx.Request().Context(), ctx.Param("id"), userID, data.DriverID, phase); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Водитель назначен", http.StatusOK)
}

func (c *OrderController) GetOrder(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	order, err := c.orderService.GetOrder(ctx.Request().Context(), ctx.Param("id"), userID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, dto.NewOrderResponse(order), "Заказ получен", http.StatusOK)
}

func (c *OrderController) GetHistory(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	history, err := c.orderService.GetHistory(ctx.Request().Context(), ctx.Param("id"), userID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, dto.NewHistoryResponse(history), "История заказа получена", http.StatusOK)
}

func (c *OrderController) GetAssignments(ctx echo.Context) error {
	userID, err := c.actor(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	items, err := c.orderService.GetAssignments(ctx.Request().Context(), ctx.Param("id"), userID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, dto.NewAssignmentsResponse(items), "Назначения получены", http.StatusOK)
}
