package geo

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

const minPasswordLen = 6

type PersonRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	CityID    *int64 `json:"cityId"`
}

func (r *PersonRequest) validate(requirePassword bool) []ErrorDetail {
	var details []ErrorDetail
	if blank(r.FirstName) {
		details = append(details, ErrorDetail{Field: "firstName", Rule: "required", Message: "First name is required"})
	}
	if blank(r.LastName) {
		details = append(details, ErrorDetail{Field: "lastName", Rule: "required", Message: "Last name is required"})
	}
	if blank(r.Email) || !strings.Contains(r.Email, "@") {
		details = append(details, ErrorDetail{Field: "email", Rule: "format", Message: "A valid email is required"})
	}
	if requirePassword && len(r.Password) < minPasswordLen {
		details = append(details, ErrorDetail{Field: "password", Rule: "min_length", Message: "Password must be at least 6 characters"})
	} else if !requirePassword && r.Password != "" && len(r.Password) < minPasswordLen {
		details = append(details, ErrorDetail{Field: "password", Rule: "min_length", Message: "Password must be at least 6 characters"})
	}
	if r.Role != "" {
		if _, err := model.ParseRole(r.Role); err != nil {
			details = append(details, ErrorDetail{Field: "role", Rule: "enum", Message: "Role must be USER, MODERATOR or ADMIN"})
		}
	}
	return details
}

// PersonPatch carries the PATCH body; absent fields keep their current value.
// A JSON null cityId is indistinguishable from an absent one here, so
// detaching a person from their city requires a full PUT.
type PersonPatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
	CityID    *int64  `json:"cityId"`
}

// CreatePerson handles POST /api/persons. A person is not a geographic fact:
// creation is NOT idempotent and a duplicate email is a Conflict.
func (h *Handler) CreatePerson(c *fiber.Ctx) error {
	var req PersonRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequestError("Invalid JSON body")
	}
	if details := req.validate(true); len(details) > 0 {
		return ValidationError(details)
	}

	if req.CityID != nil {
		if _, err := h.cities.GetByID(c.Context(), *req.CityID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFoundError("City", *req.CityID)
			}
			return err
		}
	}

	if _, err := h.persons.GetByEmail(c.Context(), req.Email); err == nil {
		return ConflictError("Email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	role := model.RoleUser
	if req.Role != "" {
		role, _ = model.ParseRole(req.Role)
	}

	person, err := h.persons.Insert(c.Context(), &model.Person{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		CityID:       req.CityID,
	})
	if err != nil {
		// A concurrent registration with the same email loses the race here.
		return writeError(err)
	}
	return c.Status(201).JSON(fiber.Map{"data": person})
}

// ListPersons handles GET /api/persons.
func (h *Handler) ListPersons(c *fiber.Ctx) error {
	params, err := ParseListParams(c, PersonSortable)
	if err != nil {
		return err
	}
	persons, total, err := h.persons.List(c.Context(), params)
	if err != nil {
		return err
	}
	return listResponse(c, persons, params, total)
}

// SearchPersons handles GET /api/persons/search?name=
func (h *Handler) SearchPersons(c *fiber.Ctx) error {
	term, err := ParseSearchTerm(c)
	if err != nil {
		return err
	}
	persons, err := h.persons.Search(c.Context(), term)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": persons})
}

// GetPerson handles GET /api/persons/:id
func (h *Handler) GetPerson(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	person, err := h.persons.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Person", id)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": person})
}

// ListPersonsByCity handles GET /api/persons/by-city/:id
func (h *Handler) ListPersonsByCity(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	persons, err := h.persons.ListByCity(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": persons})
}

// UpdatePerson handles PUT /api/persons/:id. The password is replaced only
// when the request carries one.
func (h *Handler) UpdatePerson(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	current, err := h.persons.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Person", id)
		}
		return err
	}

	var req PersonRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequestError("Invalid JSON body")
	}
	if details := req.validate(false); len(details) > 0 {
		return ValidationError(details)
	}

	person := &model.Person{
		ID:           id,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: current.PasswordHash,
		Role:         current.Role,
		CityID:       req.CityID,
	}
	if req.Role != "" {
		person.Role, _ = model.ParseRole(req.Role)
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		person.PasswordHash = string(hash)
	}

	if err := h.checkPersonUpdate(c, person); err != nil {
		return err
	}

	if err := h.persons.Update(c.Context(), person); err != nil {
		return writeError(err)
	}
	return c.JSON(fiber.Map{"data": person})
}

// PatchPerson handles PATCH /api/persons/:id.
func (h *Handler) PatchPerson(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	current, err := h.persons.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Person", id)
		}
		return err
	}

	var patch PersonPatch
	if err := c.BodyParser(&patch); err != nil {
		return BadRequestError("Invalid JSON body")
	}

	merged := *current
	if patch.FirstName != nil {
		merged.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		merged.LastName = *patch.LastName
	}
	if patch.Email != nil {
		merged.Email = *patch.Email
	}
	if patch.Role != nil {
		role, err := model.ParseRole(*patch.Role)
		if err != nil {
			return ValidationError([]ErrorDetail{{Field: "role", Rule: "enum", Message: "Role must be USER, MODERATOR or ADMIN"}})
		}
		merged.Role = role
	}
	if patch.CityID != nil {
		merged.CityID = patch.CityID
	}
	if patch.Password != nil {
		if len(*patch.Password) < minPasswordLen {
			return ValidationError([]ErrorDetail{{Field: "password", Rule: "min_length", Message: "Password must be at least 6 characters"}})
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		merged.PasswordHash = string(hash)
	}

	req := PersonRequest{FirstName: merged.FirstName, LastName: merged.LastName, Email: merged.Email, Role: string(merged.Role)}
	if details := req.validate(false); len(details) > 0 {
		return ValidationError(details)
	}
	if err := h.checkPersonUpdate(c, &merged); err != nil {
		return err
	}

	if err := h.persons.Update(c.Context(), &merged); err != nil {
		return writeError(err)
	}
	return c.JSON(fiber.Map{"data": merged})
}

// DeletePerson handles DELETE /api/persons/:id. Persons are leaves, so no
// dependent check applies.
func (h *Handler) DeletePerson(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.persons.Delete(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Person", id)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

func (h *Handler) checkPersonUpdate(c *fiber.Ctx, person *model.Person) error {
	if person.CityID != nil {
		if _, err := h.cities.GetByID(c.Context(), *person.CityID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFoundError("City", *person.CityID)
			}
			return err
		}
	}

	return AssertKeyAvailable(c.Context(), person.ID, func(ctx context.Context) (*model.Person, error) {
		return h.persons.GetByEmail(ctx, person.Email)
	}, func(p *model.Person) int64 { return p.ID }, "Email already registered")
}
