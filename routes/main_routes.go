package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mscwoundcare/portal_backend/services"
	"github.com/mscwoundcare/portal_backend/websocket"
)

// SetupRoutes configures all API routes by calling individual route
// registration functions
func SetupRoutes(e *echo.Echo, db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub, commissionService *services.CommissionService) {
	// WebSocket endpoint; clients authenticate with an AUTH frame after
	// connecting
	e.GET("/api/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(c, hub, primitive.NilObjectID)
	})

	RegisterAuthRoutes(e, db, redisClient)
	RegisterUserRoutes(e, db)
	RegisterOrderRoutes(e, db, hub)
	RegisterProductRoutes(e, db)
	RegisterFacilityRoutes(e, db)
	RegisterCommissionRoutes(e, db, hub, commissionService)
}
