package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

const maxCountryCodeLen = 10

type CountryRequest struct {
	Name string  `json:"name"`
	Code *string `json:"code"`
}

func (r *CountryRequest) validate() []ErrorDetail {
	var details []ErrorDetail
	if blank(r.Name) {
		details = append(details, ErrorDetail{Field: "name", Rule: "required", Message: "Name is required"})
	}
	if r.Code != nil {
		if blank(*r.Code) {
			details = append(details, ErrorDetail{Field: "code", Rule: "required", Message: "Code must not be blank"})
		} else if len(*r.Code) > maxCountryCodeLen {
			details = append(details, ErrorDetail{Field: "code", Rule: "max_length", Message: fmt.Sprintf("Code must be at most %d characters", maxCountryCodeLen)})
		}
	}
	return details
}

// CountryPatch carries the PATCH body; absent fields keep their current value.
// A JSON null code is indistinguishable from an absent one here, so clearing
// the code requires a full PUT.
type CountryPatch struct {
	Name *string `json:"name"`
	Code *string `json:"code"`
}

// CreateCountry handles POST /api/countries. Creation is idempotent: a request
// naming an existing country resolves to the stored row.
func (h *Handler) CreateCountry(c *fiber.Ctx) error {
	var req CountryRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequestError("Invalid JSON body")
	}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}

	probe := func(ctx context.Context) (*model.Country, error) {
		existing, err := h.countries.GetByName(ctx, req.Name)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if req.Code != nil {
			return h.countries.GetByCode(ctx, *req.Code)
		}
		return nil, store.ErrNotFound
	}
	insert := func(ctx context.Context) (*model.Country, error) {
		return h.countries.Insert(ctx, &model.Country{Name: req.Name, Code: req.Code})
	}

	country, _, err := Resolve(c.Context(), probe, insert)
	if err != nil {
		return writeError(err)
	}
	return c.Status(201).JSON(fiber.Map{"data": country})
}

// ListCountries handles GET /api/countries.
func (h *Handler) ListCountries(c *fiber.Ctx) error {
	params, err := ParseListParams(c, CountrySortable)
	if err != nil {
		return err
	}
	countries, total, err := h.countries.List(c.Context(), params)
	if err != nil {
		return err
	}
	return listResponse(c, countries, params, total)
}

// SearchCountries handles GET /api/countries/search?name=
func (h *Handler) SearchCountries(c *fiber.Ctx) error {
	term, err := ParseSearchTerm(c)
	if err != nil {
		return err
	}
	countries, err := h.countries.Search(c.Context(), term)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": countries})
}

// GetCountry handles GET /api/countries/:id
func (h *Handler) GetCountry(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	country, err := h.countries.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Country", id)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": country})
}

// UpdateCountry handles PUT /api/countries/:id. Unlike creation, updates
// reject uniqueness conflicts instead of resolving to the existing row.
func (h *Handler) UpdateCountry(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.countries.GetByID(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Country", id)
		}
		return err
	}

	var req CountryRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequestError("Invalid JSON body")
	}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}

	country := &model.Country{ID: id, Name: req.Name, Code: req.Code}
	if err := h.checkCountryKeys(c, country); err != nil {
		return err
	}

	if err := h.countries.Update(c.Context(), country); err != nil {
		return writeError(err)
	}
	return c.JSON(fiber.Map{"data": country})
}

// PatchCountry handles PATCH /api/countries/:id.
func (h *Handler) PatchCountry(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	current, err := h.countries.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Country", id)
		}
		return err
	}

	var patch CountryPatch
	if err := c.BodyParser(&patch); err != nil {
		return BadRequestError("Invalid JSON body")
	}

	merged := *current
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Code != nil {
		merged.Code = patch.Code
	}

	req := CountryRequest{Name: merged.Name, Code: merged.Code}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}
	if err := h.checkCountryKeys(c, &merged); err != nil {
		return err
	}

	if err := h.countries.Update(c.Context(), &merged); err != nil {
		return writeError(err)
	}
	return c.JSON(fiber.Map{"data": merged})
}

// DeleteCountry handles DELETE /api/countries/:id.
func (h *Handler) DeleteCountry(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.countries.GetByID(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Country", id)
		}
		return err
	}

	if err := AssertDeletable(c.Context(), "Country", "provinces", func(ctx context.Context) (int64, error) {
		return h.provinces.CountByCountry(ctx, id)
	}); err != nil {
		return err
	}

	if err := h.countries.Delete(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Country", id)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// checkCountryKeys re-runs the name and code uniqueness probes, excluding the
// country's own row.
func (h *Handler) checkCountryKeys(c *fiber.Ctx, country *model.Country) error {
	idOf := func(c *model.Country) int64 { return c.ID }

	if err := AssertKeyAvailable(c.Context(), country.ID, func(ctx context.Context) (*model.Country, error) {
		return h.countries.GetByName(ctx, country.Name)
	}, idOf, "Country name already in use"); err != nil {
		return err
	}

	if country.Code != nil {
		if err := AssertKeyAvailable(c.Context(), country.ID, func(ctx context.Context) (*model.Country, error) {
			return h.countries.GetByCode(ctx, *country.Code)
		}, idOf, "Country code already in use"); err != nil {
			return err
		}
	}
	return nil
}
