package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mscwoundcare/portal_backend/controllers"
	"github.com/mscwoundcare/portal_backend/middleware"
	"github.com/mscwoundcare/portal_backend/websocket"
)

// RegisterOrderRoutes sets up order creation and lifecycle routes
func RegisterOrderRoutes(e *echo.Echo, db *mongo.Client, hub *websocket.Hub) {
	orderController := controllers.NewOrderController(db, hub)

	r := e.Group("/api/orders")
	r.Use(middleware.JWTMiddleware())

	r.POST("", orderController.CreateOrder)
	r.GET("", orderController.GetOrders)
	r.GET("/:id", orderController.GetOrder)
	r.POST("/:id/cancel", orderController.CancelOrder)

	// Only back-office staff operate the fulfillment pipeline
	r.PUT("/:id/status", orderController.UpdateOrderStatus, middleware.RequireAdminOrStaff())
}
