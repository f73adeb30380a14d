package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mscwoundcare/portal_backend/controllers"
	"github.com/mscwoundcare/portal_backend/middleware"
	"github.com/mscwoundcare/portal_backend/services"
	"github.com/mscwoundcare/portal_backend/websocket"
)

// RegisterCommissionRoutes sets up commission calculation, payout and
// rule routes
func RegisterCommissionRoutes(e *echo.Echo, db *mongo.Client, hub *websocket.Hub, commissionService *services.CommissionService) {
	commissionController := controllers.NewCommissionController(db, commissionService, hub)

	r := e.Group("/api/commissions")
	r.Use(middleware.JWTMiddleware())

	// Reps see their own payouts; admin and staff see everyone's
	r.GET("/payouts", commissionController.GetPayouts)

	r.POST("/calculate", commissionController.CalculateCommissions, middleware.RequireAdminOrStaff())
	r.POST("/payouts", commissionController.CreatePayout, middleware.RequireAdmin())

	r.GET("/rules", commissionController.GetRules, middleware.RequireAdminOrStaff())
	r.GET("/rules/:id", commissionController.GetRule, middleware.RequireAdminOrStaff())
	r.POST("/rules", commissionController.CreateRule, middleware.RequireAdmin())
	r.PUT("/rules/:id", commissionController.UpdateRule, middleware.RequireAdmin())
	r.DELETE("/rules/:id", commissionController.DeleteRule, middleware.RequireAdmin())
}
