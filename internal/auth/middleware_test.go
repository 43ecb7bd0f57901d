package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/geo"
	"atlas-backend/internal/model"
)

const testSecret = "test-secret"

func testErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *geo.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(geo.ErrorResponse{Error: appErr})
	}
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

func middlewareApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})

	ok := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"email": GetUser(c).Email})
	}
	app.Get("/protected", RequireAuth(testSecret), ok)
	app.Get("/admin", RequireAuth(testSecret), RequireRoles(model.RoleAdmin), ok)
	app.Get("/staff", RequireAuth(testSecret), RequireRoles(model.RoleAdmin, model.RoleModerator), ok)
	return app
}

func tokenFor(t *testing.T, role model.Role) string {
	t.Helper()
	token, err := GenerateToken(&model.Person{ID: 1, Email: "ada@example.com", Role: role}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func get(t *testing.T, app *fiber.App, path string, decorate func(*http.Request)) *http.Response {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if decorate != nil {
		decorate(req)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	resp.Body.Close()
	return resp
}

func TestRequireAuthMissingToken(t *testing.T) {
	app := middlewareApp()
	if resp := get(t, app, "/protected", nil); resp.StatusCode != 401 {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireAuthBadToken(t *testing.T) {
	app := middlewareApp()
	resp := get(t, app, "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	if resp.StatusCode != 401 {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireAuthBearerHeader(t *testing.T) {
	app := middlewareApp()
	token := tokenFor(t, model.RoleUser)
	resp := get(t, app, "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequireAuthSessionCookie(t *testing.T) {
	app := middlewareApp()
	token := tokenFor(t, model.RoleUser)
	resp := get(t, app, "/protected", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	})
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequireRoles(t *testing.T) {
	app := middlewareApp()

	cases := []struct {
		path string
		role model.Role
		want int
	}{
		{"/admin", model.RoleAdmin, 200},
		{"/admin", model.RoleModerator, 403},
		{"/admin", model.RoleUser, 403},
		{"/staff", model.RoleAdmin, 200},
		{"/staff", model.RoleModerator, 200},
		{"/staff", model.RoleUser, 403},
	}
	for _, tc := range cases {
		token := tokenFor(t, tc.role)
		resp := get(t, app, tc.path, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
		if resp.StatusCode != tc.want {
			t.Errorf("%s as %s: expected %d, got %d", tc.path, tc.role, tc.want, resp.StatusCode)
		}
	}
}
