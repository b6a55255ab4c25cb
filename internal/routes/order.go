package routes

import (
	"github.com/labstack/echo/v4"

	"laundry-delivery/internal/controllers"
)

func runOrderRouter(secureGroup *echo.Group, orderCtrl *controllers.OrderController, driverCtrl *controllers.DriverController) {
	{
		secureGroup.POST("/orders", orderCtrl.CreateOrder)
		secureGroup.GET("/orders/:id", orderCtrl.GetOrder)
		secureGroup.GET("/orders/:id/history", orderCtrl.GetHistory)
		secureGroup.GET("/orders/:id/assignments", orderCtrl.GetAssignments)

		secureGroup.POST("/orders/:id/submit", orderCtrl.SubmitOrder)
		secureGroup.POST("/orders/:id/claim", orderCtrl.ClaimOrder)
		secureGroup.POST("/orders/:id/confirm", orderCtrl.ConfirmOrder)
		secureGroup.POST("/orders/:id/cancel", orderCtrl.CancelOrder)
		secureGroup.POST("/orders/:id/complete", orderCtrl.CompleteOrder)
		secureGroup.POST("/orders/:id/assign", orderCtrl.AssignDriver)
	}
	{
		secureGroup.POST("/orders/:id/:phase/start", driverCtrl.Start)
		secureGroup.POST("/orders/:id/:phase/confirm", driverCtrl.Confirm)
		secureGroup.POST("/orders/:id/:phase/return", driverCtrl.Return)
		secureGroup.POST("/orders/:id/:phase/cancel", driverCtrl.Cancel)
	}
}
