package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mscwoundcare/portal_backend/controllers"
	"github.com/mscwoundcare/portal_backend/middleware"
)

// RegisterProductRoutes sets up product catalog routes
func RegisterProductRoutes(e *echo.Echo, db *mongo.Client) {
	productController := controllers.NewProductController(db)

	r := e.Group("/api/products")
	r.Use(middleware.JWTMiddleware())

	r.GET("", productController.GetProducts)
	r.GET("/:id", productController.GetProduct)

	r.POST("", productController.CreateProduct, middleware.RequireAdminOrStaff())
	r.PUT("/:id", productController.UpdateProduct, middleware.RequireAdminOrStaff())
	r.DELETE("/:id", productController.DeleteProduct, middleware.RequireAdmin())
}
