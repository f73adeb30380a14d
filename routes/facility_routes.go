package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mscwoundcare/portal_backend/controllers"
	"github.com/mscwoundcare/portal_backend/middleware"
)

// RegisterFacilityRoutes sets up facility management routes
func RegisterFacilityRoutes(e *echo.Echo, db *mongo.Client) {
	facilityController := controllers.NewFacilityController(db)

	r := e.Group("/api/facilities")
	r.Use(middleware.JWTMiddleware())

	r.GET("", facilityController.GetFacilities)
	r.GET("/:id", facilityController.GetFacility)

	r.POST("", facilityController.CreateFacility, middleware.RequireAdminOrStaff())
	r.PUT("/:id", facilityController.UpdateFacility, middleware.RequireAdminOrStaff())
	r.DELETE("/:id", facilityController.DeleteFacility, middleware.RequireAdmin())
	r.POST("/:id/users", facilityController.AssignUser, middleware.RequireAdminOrStaff())
}
