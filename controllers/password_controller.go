package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/gomail.v2"

	"github.com/mscwoundcare/portal_backend/config"
	"github.com/mscwoundcare/portal_backend/models"
	"github.com/mscwoundcare/portal_backend/repositories"
	"github.com/mscwoundcare/portal_backend/utils"
)

const otpTTL = 15 * time.Minute

// PasswordController handles the forgot/reset password flow
type PasswordController struct {
	DB     *mongo.Client
	redis  *redis.Client
	users  *repositories.UserRepository
	logger *log.Logger
}

// NewPasswordController creates a new password controller
func NewPasswordController(db *mongo.Client, redisClient *redis.Client) *PasswordController {
	return &PasswordController{
		DB:     db,
		redis:  redisClient,
		users:  repositories.NewUserRepository(db),
		logger: log.New(os.Stdout, "[PASSWORD] ", log.LstdFlags),
	}
}

// ForgotPassword emails a one-time code to the account's address. The
// response is the same whether or not the account exists.
func (pc *PasswordController) ForgotPassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email address",
		})
	}

	genericOK := models.Response{
		Status:  http.StatusOK,
		Message: "If an account exists for this email, a reset code has been sent",
	}

	user, err := pc.users.FindByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusOK, genericOK)
	}

	if err := utils.ValidateOTPAttempts(user.ID.Hex(), pc.redis); err != nil {
		return c.JSON(http.StatusTooManyRequests, models.Response{
			Status:  http.StatusTooManyRequests,
			Message: "Too many reset attempts, try again later",
		})
	}

	otp, err := utils.GenerateSecureOTP()
	if err != nil {
		pc.logger.Printf("Error generating OTP: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process request",
		})
	}

	expiresAt := time.Now().UTC().Add(otpTTL)
	_, err = config.GetCollection(pc.DB, "users").UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{
			"otpInfo":             models.OTPInfo{OTP: otp, ExpiresAt: expiresAt},
			"resetTokenExpiresAt": expiresAt,
			"updatedAt":           time.Now().UTC(),
		}},
	)
	if err != nil {
		pc.logger.Printf("Error storing OTP for %s: %v", user.ID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process request",
		})
	}

	if err := pc.sendOTPEmail(user.Email, user.FirstName, otp); err != nil {
		pc.logger.Printf("Error sending reset email to %s: %v", user.Email, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send reset email",
		})
	}

	return c.JSON(http.StatusOK, genericOK)
}

// ResetPassword verifies the emailed code and sets the new password
func (pc *PasswordController) ResetPassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email, code and new password (min 8 chars) are required",
		})
	}
	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email address",
		})
	}

	user, err := pc.users.FindByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired reset code",
		})
	}

	if user.OTPInfo == nil || user.OTPInfo.OTP != req.OTP ||
		time.Now().UTC().After(user.OTPInfo.ExpiresAt) {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired reset code",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		pc.logger.Printf("Error hashing password: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reset password",
		})
	}

	_, err = config.GetCollection(pc.DB, "users").UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{
			"$set":   bson.M{"password": string(hashed), "updatedAt": time.Now().UTC()},
			"$unset": bson.M{"otpInfo": "", "resetTokenExpiresAt": ""},
		},
	)
	if err != nil {
		pc.logger.Printf("Error saving new password for %s: %v", user.ID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reset password",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password reset successfully",
	})
}

func (pc *PasswordController) sendOTPEmail(to, firstName, otp string) error {
	host := os.Getenv("SMTP_HOST")
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}
	username := os.Getenv("SMTP_USERNAME")
	password := os.Getenv("SMTP_PASSWORD")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = username
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your password reset code")
	m.SetBody("text/html", fmt.Sprintf(
		"<p>Hi %s,</p><p>Your password reset code is <strong>%s</strong>. It expires in %d minutes.</p><p>If you did not request this, you can ignore this email.</p>",
		firstName, otp, int(otpTTL.Minutes()),
	))

	d := gomail.NewDialer(host, port, username, password)
	return d.DialAndSend(m)
}
