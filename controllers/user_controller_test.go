package controllers

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/mscwoundcare/portal_backend/models"
)

type fakeUserStore struct {
	users  map[primitive.ObjectID]models.User
	hashes map[primitive.ObjectID]string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:  make(map[primitive.ObjectID]models.User),
		hashes: make(map[primitive.ObjectID]string),
	}
}

func (f *fakeUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &user, nil
}

func (f *fakeUserStore) Insert(ctx context.Context, user *models.User) error {
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserStore) List(ctx context.Context, filter bson.M, limit, offset int64) ([]models.User, error) {
	users := []models.User{}
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	f.hashes[id] = hash
	user := f.users[id]
	user.Password = hash
	f.users[id] = user
	return nil
}

func seedUser(t *testing.T, store *fakeUserStore, password string) models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		ID:       primitive.NewObjectID(),
		Email:    "rep@example.com",
		Password: string(hashed),
		Role:     models.RoleRep,
		IsActive: true,
	}
	store.users[user.ID] = user
	return user
}

func changePasswordRequest(t *testing.T, store *fakeUserStore, userID primitive.ObjectID, body string) *httptest.ResponseRecorder {
	t.Helper()

	controller := &UserController{
		users:  store,
		logger: log.New(io.Discard, "", 0),
	}

	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}
	req := httptest.NewRequest(http.MethodPut, "/api/users/me/password", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("userId", userID.Hex())

	require.NoError(t, controller.ChangePassword(c))
	return rec
}

func TestChangePasswordWithCorrectOldPassword(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(t, store, "old-password-1")

	rec := changePasswordRequest(t, store, user.ID,
		`{"oldPassword":"old-password-1","newPassword":"new-password-2"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, ok := store.hashes[user.ID]
	require.True(t, ok, "new hash must be persisted")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("new-password-2")))
}

func TestChangePasswordRejectsWrongOldPassword(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(t, store, "old-password-1")

	rec := changePasswordRequest(t, store, user.ID,
		`{"oldPassword":"not-the-password","newPassword":"new-password-2"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, ok := store.hashes[user.ID]
	assert.False(t, ok, "password must not change on a failed check")
}

func TestChangePasswordRejectsShortNewPassword(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(t, store, "old-password-1")

	rec := changePasswordRequest(t, store, user.ID,
		`{"oldPassword":"old-password-1","newPassword":"short"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangePasswordRejectsUnknownUser(t *testing.T) {
	store := newFakeUserStore()

	rec := changePasswordRequest(t, store, primitive.NewObjectID(),
		`{"oldPassword":"old-password-1","newPassword":"new-password-2"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
