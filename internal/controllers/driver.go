package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"laundry-delivery/internal/services"
	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/utils"
)

const (
	photosFormField = "photos"
	maxPhotos       = 10
)

// DriverController - действия водителя по этапам заказа (:phase = pickup | delivery).
type DriverController struct {
	orderService services.OrderServiceInterface
	logger       *zap.Logger
}

func NewDriverController(orderService services.OrderServiceInterface, logger *zap.Logger) *DriverController {
	return &DriverController{orderService: orderService, logger: logger}
}

func phaseParam(ctx echo.Context) (constants.AssignmentPhase, error) {
	phase := constants.AssignmentPhase(strings.ToUpper(ctx.Param("phase")))
	if !phase.Valid() {
		return "", apperrors.NewInvalidInputError("неизвестный этап: %s", ctx.Param("phase"))
	}
	return phase, nil
}

// openPhotos открывает файлы из multipart-формы. Вызывающий обязан вызвать close.
func openPhotos(ctx echo.Context) (photos []services.PhotoFile, closeAll func(), err error) {
	var opened []multipart.File
	closeAll = func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, closeAll, nil
		}
		return nil, closeAll, apperrors.NewInvalidInputError("некорректная форма: %v", err)
	}
	headers := form.File[photosFormField]
	if len(headers) > maxPhotos {
		return nil, closeAll, apperrors.NewInvalidInputError("не больше %d фото", maxPhotos)
	}
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, apperrors.NewInvalidInputError("не удалось прочитать файл %s", h.Filename)
		}
		opened = append(opened, f)
		photos = append(photos, services.PhotoFile{Name: h.Filename, Size: h.Size, Content: f})
	}
	return photos, closeAll, nil
}

func (c *DriverController) driverAndPhase(ctx echo.Context) (uint64, constants.AssignmentPhase, error) {
	userID, err := utils.GetUserIDFromCtx(ctx.Request().Context())
	if err != nil {
		return 0, "", err
	}
	phase, err := phaseParam(ctx)
	if err != nil {
		return 0, "", err
	}
	return userID, phase, nil
}

func (c *DriverController) Start(ctx echo.Context) error {
	driverID, phase, err := c.driverAndPhase(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	reqCtx, orderID := ctx.Request().Context(), ctx.Param("id")
	if phase == constants.PhasePickup {
		err = c.orderService.StartPickup(reqCtx, orderID, driverID)
	} else {
		err = c.orderService.StartDelivery(reqCtx, orderID, driverID)
	}
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Этап начат", http.StatusOK)
}

func (c *DriverController) Confirm(ctx echo.Context) error {
	driverID, phase, err := c.driverAndPhase(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	photos, closePhotos, err := openPhotos(ctx)
	defer closePhotos()
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	reqCtx, orderID, notes := ctx.Request().Context(), ctx.Param("id"), ctx.FormValue("notes")
	if phase == constants.PhasePickup {
		err = c.orderService.ConfirmPickedUp(reqCtx, orderID, driverID, notes, photos)
	} else {
		err = c.orderService.ConfirmDelivered(reqCtx, orderID, driverID, notes, photos)
	}
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Этап подтверждён", http.StatusOK)
}

func (c *DriverController) Return(ctx echo.Context) error {
	driverID, phase, err := c.driverAndPhase(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	reqCtx, orderID := ctx.Request().Context(), ctx.Param("id")
	if phase == constants.PhasePickup {
		err = c.orderService.ConfirmPickupReturned(reqCtx, orderID, driverID)
	} else {
		err = c.orderService.ConfirmDeliveryReturned(reqCtx, orderID, driverID)
	}
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Назначение закрыто", http.StatusOK)
}

func (c *DriverController) Cancel(ctx echo.Context) error {
	driverID, phase, err := c.driverAndPhase(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	photos, closePhotos, err := openPhotos(ctx)
	defer closePhotos()
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	reqCtx, orderID, reason := ctx.Request().Context(), ctx.Param("id"), ctx.FormValue("reason")
	if phase == constants.PhasePickup {
		err = c.orderService.CancelAssignedPickup(reqCtx, orderID, driverID, reason, photos)
	} else {
		err = c.orderService.CancelAssignedDelivery(reqCtx, orderID, driverID, reason, photos)
	}
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Этап отменён", http.StatusOK)
}
