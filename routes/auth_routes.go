package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mscwoundcare/portal_backend/controllers"
)

// RegisterAuthRoutes sets up authentication and password reset routes
func RegisterAuthRoutes(e *echo.Echo, db *mongo.Client, redisClient *redis.Client) {
	authController := controllers.NewAuthController(db, redisClient)
	passwordController := controllers.NewPasswordController(db, redisClient)

	e.POST("/api/auth/signup", authController.Signup)
	e.POST("/api/auth/login", authController.Login)
	e.POST("/api/auth/logout", authController.Logout)
	e.POST("/api/auth/remember-me", authController.RememberedLogin)
	e.POST("/api/auth/forgot-password", passwordController.ForgotPassword)
	e.POST("/api/auth/reset-password", passwordController.ResetPassword)
}
