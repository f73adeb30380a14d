package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mscwoundcare/portal_backend/config"
	"github.com/mscwoundcare/portal_backend/middleware"
	"github.com/mscwoundcare/portal_backend/models"
	"github.com/mscwoundcare/portal_backend/utils"
)

// FacilityController handles healthcare facility management
type FacilityController struct {
	DB     *mongo.Client
	logger *log.Logger
}

// NewFacilityController creates a new facility controller
func NewFacilityController(db *mongo.Client) *FacilityController {
	return &FacilityController{
		DB:     db,
		logger: log.New(os.Stdout, "[FACILITY] ", log.LstdFlags),
	}
}

// GetFacilities lists facilities. Admin and staff see all; reps see the
// facilities they are assigned to.
func (fc *FacilityController) GetFacilities(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	limit := parseIntParam(c.QueryParam("limit"), 50)
	offset := parseIntParam(c.QueryParam("offset"), 0)

	filter := bson.M{}

	role := middleware.ExtractRole(c)
	if role != models.RoleAdmin && role != models.RoleStaff {
		userID, err := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid user ID in token",
			})
		}
		var user models.User
		if err := config.GetCollection(fc.DB, "users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "User not found",
			})
		}
		ids := user.FacilityIDs
		if ids == nil {
			ids = []primitive.ObjectID{}
		}
		filter["_id"] = bson.M{"$in": ids}
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := config.GetCollection(fc.DB, "facilities").Find(ctx, filter, opts)
	if err != nil {
		fc.logger.Printf("Error fetching facilities: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch facilities",
		})
	}

	facilities := []models.Facility{}
	if err := cursor.All(ctx, &facilities); err != nil {
		fc.logger.Printf("Error decoding facilities: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch facilities",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"facilities": facilities,
		"pagination": models.Pagination{Limit: limit, Offset: offset},
	})
}

// GetFacility fetches a single facility by ID
func (fc *FacilityController) GetFacility(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	facilityID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid facility ID format",
		})
	}

	var facility models.Facility
	if err := config.GetCollection(fc.DB, "facilities").FindOne(ctx, bson.M{"_id": facilityID}).Decode(&facility); err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Facility not found",
			})
		}
		fc.logger.Printf("Error loading facility %s: %v", facilityID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch facility",
		})
	}

	return c.JSON(http.StatusOK, facility)
}

// CreateFacility registers a new healthcare facility
func (fc *FacilityController) CreateFacility(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.CreateFacilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Name, address, city, state and zip are required",
		})
	}

	email := ""
	if req.Email != "" {
		var err error
		email, err = utils.SanitizeEmail(req.Email)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid contact email",
			})
		}
	}

	now := time.Now().UTC()
	facility := models.Facility{
		ID:        primitive.NewObjectID(),
		Name:      req.Name,
		Address:   req.Address,
		City:      req.City,
		State:     req.State,
		Zip:       req.Zip,
		Phone:     req.Phone,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := config.GetCollection(fc.DB, "facilities").InsertOne(ctx, facility); err != nil {
		fc.logger.Printf("Error inserting facility: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create facility",
		})
	}

	return c.JSON(http.StatusCreated, facility)
}

// UpdateFacility updates facility details
func (fc *FacilityController) UpdateFacility(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	facilityID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid facility ID format",
		})
	}

	var req models.UpdateFacilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	update := bson.M{"updatedAt": time.Now().UTC()}
	if req.Name != "" {
		update["name"] = req.Name
	}
	if req.Address != "" {
		update["address"] = req.Address
	}
	if req.City != "" {
		update["city"] = req.City
	}
	if req.State != "" {
		update["state"] = req.State
	}
	if req.Zip != "" {
		update["zip"] = req.Zip
	}
	if req.Phone != "" {
		update["phone"] = req.Phone
	}
	if req.Email != "" {
		email, err := utils.SanitizeEmail(req.Email)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid contact email",
			})
		}
		update["email"] = email
	}

	var facility models.Facility
	err = config.GetCollection(fc.DB, "facilities").FindOneAndUpdate(ctx,
		bson.M{"_id": facilityID},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&facility)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Facility not found",
			})
		}
		fc.logger.Printf("Error updating facility %s: %v", facilityID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update facility",
		})
	}

	return c.JSON(http.StatusOK, facility)
}

// DeleteFacility removes a facility and unassigns it from users
func (fc *FacilityController) DeleteFacility(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	facilityID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid facility ID format",
		})
	}

	result, err := config.GetCollection(fc.DB, "facilities").DeleteOne(ctx, bson.M{"_id": facilityID})
	if err != nil {
		fc.logger.Printf("Error deleting facility %s: %v", facilityID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete facility",
		})
	}
	if result.DeletedCount == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Facility not found",
		})
	}

	_, err = config.GetCollection(fc.DB, "users").UpdateMany(ctx,
		bson.M{"facilityIds": facilityID},
		bson.M{"$pull": bson.M{"facilityIds": facilityID}},
	)
	if err != nil {
		fc.logger.Printf("Error unassigning deleted facility %s: %v", facilityID.Hex(), err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Facility deleted successfully",
	})
}

// AssignUser links a rep to a facility so their orders can target it
func (fc *FacilityController) AssignUser(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	facilityID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid facility ID format",
		})
	}

	var req models.AssignFacilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "User ID is required",
		})
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	count, err := config.GetCollection(fc.DB, "facilities").CountDocuments(ctx, bson.M{"_id": facilityID})
	if err != nil || count == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Facility not found",
		})
	}

	result, err := config.GetCollection(fc.DB, "users").UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"facilityIds": facilityID}},
	)
	if err != nil {
		fc.logger.Printf("Error assigning user %s to facility %s: %v", userID.Hex(), facilityID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to assign user",
		})
	}
	if result.MatchedCount == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User assigned to facility successfully",
	})
}
