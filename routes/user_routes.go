package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mscwoundcare/portal_backend/controllers"
	"github.com/mscwoundcare/portal_backend/middleware"
)

// RegisterUserRoutes sets up profile and admin user management routes
func RegisterUserRoutes(e *echo.Echo, db *mongo.Client) {
	userController := controllers.NewUserController(db)

	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())

	r.GET("/users/profile", userController.GetProfile)
	r.PUT("/users/profile", userController.UpdateProfile)
	r.POST("/users/change-password", userController.ChangePassword)

	// Admin-only user management
	admin := r.Group("/users", middleware.RequireAdmin())
	admin.GET("", userController.GetUsers)
	admin.POST("", userController.CreateUser)
	admin.GET("/:id", userController.GetUser)
	admin.PUT("/:id/role", userController.AssignRole)
	admin.PUT("/:id/active", userController.SetActive)
}
