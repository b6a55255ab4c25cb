package routes

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"laundry-delivery/internal/controllers"
	"laundry-delivery/internal/services"
	"laundry-delivery/pkg/middleware"
	"laundry-delivery/pkg/service"
)

type Loggers struct {
	Main     *zap.Logger
	Auth     *zap.Logger
	Order    *zap.Logger
	Tracking *zap.Logger
}

// Services - всё, что нужно маршрутам. Собирается в app/main.go.
type Services struct {
	Orders           services.OrderServiceInterface
	Tracking         services.TrackingServiceInterface
	JWT              service.JWTService
	WSMessageTimeout time.Duration
}

func InitRouter(e *echo.Echo, svc Services, loggers *Loggers, uploadsDir, uploadsURLPrefix string) {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	authMW := middleware.NewAuthMiddleware(svc.JWT, loggers.Auth)

	orderCtrl := controllers.NewOrderController(svc.Orders, loggers.Order)
	driverCtrl := controllers.NewDriverController(svc.Orders, loggers.Order)
	wsCtrl := controllers.NewWebSocketController(svc.Tracking, svc.WSMessageTimeout, loggers.Tracking)

	if uploadsDir != "" {
		e.Static(uploadsURLPrefix, uploadsDir)
	}

	api := e.Group("/api")
	secureGroup := api.Group("", authMW.Auth)
	runOrderRouter(secureGroup, orderCtrl, driverCtrl)

	e.GET("/ws/tracking", wsCtrl.ServeWs, authMW.AuthQuery)

	loggers.Main.Info("INIT_ROUTER: Создание маршрутов завершено")
}
