package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/geo"
	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

// Handler serves registration, login and session endpoints.
type Handler struct {
	persons geo.PersonStore
	cities  geo.CityStore
	secret  string
	ttl     time.Duration
}

func NewHandler(persons geo.PersonStore, cities geo.CityStore, secret string, ttl time.Duration) *Handler {
	return &Handler{persons: persons, cities: cities, secret: secret, ttl: ttl}
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	City      string `json:"city"`
	Province  string `json:"province"`
}

func (r *registerRequest) validate() []geo.ErrorDetail {
	var details []geo.ErrorDetail
	if strings.TrimSpace(r.FirstName) == "" {
		details = append(details, geo.ErrorDetail{Field: "firstName", Rule: "required", Message: "First name is required"})
	}
	if strings.TrimSpace(r.LastName) == "" {
		details = append(details, geo.ErrorDetail{Field: "lastName", Rule: "required", Message: "Last name is required"})
	}
	if strings.TrimSpace(r.Email) == "" || !strings.Contains(r.Email, "@") {
		details = append(details, geo.ErrorDetail{Field: "email", Rule: "format", Message: "A valid email is required"})
	}
	if len(r.Password) < 6 {
		details = append(details, geo.ErrorDetail{Field: "password", Rule: "min_length", Message: "Password must be at least 6 characters"})
	}
	if (strings.TrimSpace(r.City) == "") != (strings.TrimSpace(r.Province) == "") {
		details = append(details, geo.ErrorDetail{Field: "city", Rule: "pair", Message: "City and province must be provided together"})
	}
	return details
}

// Register handles POST /api/auth/register. New accounts always start as
// USER; the optional city reference resolves by city name + province name.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return geo.BadRequestError("Invalid JSON body")
	}
	if details := req.validate(); len(details) > 0 {
		return geo.ValidationError(details)
	}

	var cityID *int64
	cityName := strings.TrimSpace(req.City)
	provinceName := strings.TrimSpace(req.Province)
	if cityName != "" {
		city, err := h.cities.GetByNameAndProvinceName(c.Context(), cityName, provinceName)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return geo.BadRequestError("Unknown city/province: " + cityName + ", " + provinceName)
			}
			return err
		}
		cityID = &city.ID
	}

	if _, err := h.persons.GetByEmail(c.Context(), req.Email); err == nil {
		return geo.ConflictError("Email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return err
	}

	person, err := h.persons.Insert(c.Context(), &model.Person{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CityID:       cityID,
	})
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			// Concurrent registration with the same email won the race.
			return geo.ConflictError("Email already registered")
		}
		return err
	}

	return c.Status(201).JSON(fiber.Map{"data": person})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return geo.BadRequestError("Invalid JSON body")
	}
	if body.Email == "" || body.Password == "" {
		return geo.UnauthorizedError("Email and password are required")
	}

	person, err := h.ValidateCredentials(c.Context(), body.Email, body.Password)
	if err != nil {
		return err
	}
	if person == nil {
		return geo.UnauthorizedError("Invalid email or password")
	}

	token, err := GenerateToken(person, h.secret, h.ttl)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Expires:  time.Now().Add(h.ttl),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"accessToken": token})
}

// Logout handles POST /api/auth/logout. Tokens are stateless; logout just
// clears the session cookie.
func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Profile handles GET /api/auth/profile.
func (h *Handler) Profile(c *fiber.Ctx) error {
	user := GetUser(c)
	if user == nil {
		return geo.UnauthorizedError("Missing auth token")
	}

	person, err := h.persons.GetByID(c.Context(), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The account was deleted while its token was still live.
			return geo.UnauthorizedError("Account no longer exists")
		}
		return err
	}
	return c.JSON(fiber.Map{"data": person})
}

// Status handles GET /api/auth/status.
func (h *Handler) Status(c *fiber.Ctx) error {
	user := GetUser(c)
	if user == nil {
		return geo.UnauthorizedError("Missing auth token")
	}
	return c.JSON(fiber.Map{"authenticated": true, "user": user})
}

// ValidateCredentials verifies an email/password pair and returns the person
// on success, nil when either the account is absent or the password does not
// match. The two failure modes are indistinguishable to the caller.
func (h *Handler) ValidateCredentials(ctx context.Context, email, password string) (*model.Person, error) {
	person, err := h.persons.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !CheckPassword(password, person.PasswordHash) {
		return nil, nil
	}
	return person, nil
}

// RegisterRoutes registers auth routes on the given Fiber app.
func RegisterRoutes(app *fiber.App, h *Handler, requireAuth fiber.Handler) {
	api := app.Group("/api/auth")
	api.Post("/register", h.Register)
	api.Post("/login", h.Login)
	api.Post("/logout", requireAuth, h.Logout)
	api.Get("/profile", requireAuth, h.Profile)
	api.Get("/status", requireAuth, h.Status)
}
