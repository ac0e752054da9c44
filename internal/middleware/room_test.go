package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studyroom-backend/internal/auth"
	"studyroom-backend/internal/model"
	"studyroom-backend/internal/rooms"
)

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindByCode(ctx context.Context, code string) (*model.Room, error) {
	args := m.Called(ctx, code)
	room, _ := args.Get(0).(*model.Room)
	return room, args.Error(1)
}

func (m *MockDirectory) IsMember(ctx context.Context, roomID string, userID int64) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDirectory) Join(ctx context.Context, room *model.Room, userID int64) error {
	args := m.Called(ctx, room, userID)
	return args.Error(0)
}

func setupApp(t *testing.T, dir *MockDirectory) (*fiber.App, string) {
	t.Helper()
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	token, err := jwtManager.GenerateAccessToken(5, "Ana")
	require.NoError(t, err)

	mw := NewRoomMiddleware(dir)
	app := fiber.New()
	app.Get("/rooms/:code", auth.AuthMiddleware(jwtManager), mw.ResolveRoom(), mw.RequireMembership(), func(c *fiber.Ctx) error {
		room, _ := GetRoom(c)
		return c.SendString(room.Name)
	})
	app.Get("/join/:code", auth.AuthMiddleware(jwtManager), mw.ResolveRoom(), mw.JoinOnEntry(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, token
}

func get(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestResolveRoomNotFound(t *testing.T) {
	dir := new(MockDirectory)
	dir.On("FindByCode", mock.Anything, "NOPE42").Return(nil, rooms.ErrRoomNotFound)
	app, token := setupApp(t, dir)

	assert.Equal(t, fiber.StatusNotFound, get(t, app, "/rooms/NOPE42", token))
}

func TestResolveRoomLookupFailure(t *testing.T) {
	dir := new(MockDirectory)
	dir.On("FindByCode", mock.Anything, "ABC234").Return(nil, errors.New("db down"))
	app, token := setupApp(t, dir)

	assert.Equal(t, fiber.StatusInternalServerError, get(t, app, "/rooms/ABC234", token))
}

func TestRequireMembership(t *testing.T) {
	room := &model.Room{ID: "r1", Code: "ABC234", Name: "Bio"}
	dir := new(MockDirectory)
	dir.On("FindByCode", mock.Anything, "ABC234").Return(room, nil)
	dir.On("IsMember", mock.Anything, "r1", int64(5)).Return(false, nil).Once()
	dir.On("IsMember", mock.Anything, "r1", int64(5)).Return(true, nil).Once()
	app, token := setupApp(t, dir)

	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/rooms/ABC234", token))
	assert.Equal(t, fiber.StatusOK, get(t, app, "/rooms/ABC234", token))
	dir.AssertExpectations(t)
}

func TestJoinOnEntry(t *testing.T) {
	room := &model.Room{ID: "r1", Code: "ABC234", Name: "Bio"}
	dir := new(MockDirectory)
	dir.On("FindByCode", mock.Anything, "ABC234").Return(room, nil)
	dir.On("Join", mock.Anything, room, int64(5)).Return(nil)
	app, token := setupApp(t, dir)

	assert.Equal(t, fiber.StatusNoContent, get(t, app, "/join/ABC234", token))
	dir.AssertCalled(t, "Join", mock.Anything, room, int64(5))
}
