// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles. Only REP and SUB_REP earn commission; ADMIN and STAFF run
// the portal and never appear in payouts.
const (
	RoleAdmin  = "ADMIN"
	RoleStaff  = "STAFF"
	RoleRep    = "REP"
	RoleSubRep = "SUB_REP"
)

// User model
type User struct {
	ID                  primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	Email               string               `json:"email" bson:"email"`
	Password            string               `json:"password,omitempty" bson:"password"`
	FirstName           string               `json:"firstName" bson:"firstName"`
	LastName            string               `json:"lastName" bson:"lastName"`
	Role                string               `json:"role" bson:"role"`
	ParentID            *primitive.ObjectID  `json:"parentId,omitempty" bson:"parentId,omitempty"` // set only for SUB_REP
	FacilityIDs         []primitive.ObjectID `json:"facilityIds,omitempty" bson:"facilityIds,omitempty"`
	IsActive            bool                 `json:"isActive" bson:"isActive"`
	OTPInfo             *OTPInfo             `json:"-" bson:"otpInfo,omitempty"`
	ResetTokenExpiresAt time.Time            `json:"-" bson:"resetTokenExpiresAt,omitempty"`
	LastActivityAt      time.Time            `json:"lastActivityAt" bson:"lastActivityAt"`
	CreatedAt           time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// IsCommissionEarner reports whether this user's orders generate commission
func (u *User) IsCommissionEarner() bool {
	return u.Role == RoleRep || u.Role == RoleSubRep
}

// ValidRole reports whether role is one of the known portal roles
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleRep, RoleSubRep:
		return true
	}
	return false
}

type OTPInfo struct {
	OTP       string    `json:"otp" bson:"otp"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
}

// AuthRequest models
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Role      string `json:"role,omitempty"`
	ParentID  string `json:"parentId,omitempty"`
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type UpdateProfileRequest struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type AssignRoleRequest struct {
	Role     string `json:"role" validate:"required"`
	ParentID string `json:"parentId,omitempty"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination echoes back the limit/offset a list request was served with
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
