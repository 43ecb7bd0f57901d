package geo

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

type CityRequest struct {
	Name       string   `json:"name"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	ProvinceID *int64   `json:"provinceId"`
}

func (r *CityRequest) validate() []ErrorDetail {
	var details []ErrorDetail
	if blank(r.Name) {
		details = append(details, ErrorDetail{Field: "name", Rule: "required", Message: "Name is required"})
	}
	details = append(details, validateCoords(r.Latitude, r.Longitude)...)
	if r.ProvinceID == nil {
		details = append(details, ErrorDetail{Field: "provinceId", Rule: "required", Message: "provinceId is required"})
	}
	return details
}

type CityPatch struct {
	Name       *string  `json:"name"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	ProvinceID *int64   `json:"provinceId"`
}

// CreateCity handles POST /api/cities. Identity is the coordinate pair; a name
// collision within the province is logged but never blocks the write.
func (h *Handler) CreateCity(c *fiber.Ctx) error {
	var req CityRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequestError("Invalid JSON body")
	}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}

	if _, err := h.provinces.GetByID(c.Context(), *req.ProvinceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Province", *req.ProvinceID)
		}
		return err
	}

	probe := func(ctx context.Context) (*model.City, error) {
		return h.cities.GetByCoords(ctx, *req.Latitude, *req.Longitude)
	}
	insert := func(ctx context.Context) (*model.City, error) {
		h.warnCityNameCollision(ctx, req.Name, *req.ProvinceID, 0)
		return h.cities.Insert(ctx, &model.City{
			Name:       req.Name,
			Latitude:   *req.Latitude,
			Longitude:  *req.Longitude,
			ProvinceID: *req.ProvinceID,
		})
	}

	city, _, err := Resolve(c.Context(), probe, insert)
	if err != nil {
		return writeError(err)
	}
	return c.Status(201).JSON(fiber.Map{"data": city})
}

// ListCities handles GET /api/cities.
func (h *Handler) ListCities(c *fiber.Ctx) error {
	params, err := ParseListParams(c, CitySortable)
	if err != nil {
		return err
	}
	cities, total, err := h.cities.List(c.Context(), params)
	if err != nil {
		return err
	}
	return listResponse(c, cities, params, total)
}

// SearchCities handles GET /api/cities/search?name=
func (h *Handler) SearchCities(c *fiber.Ctx) error {
	term, err := ParseSearchTerm(c)
	if err != nil {
		return err
	}
	cities, err := h.cities.Search(c.Context(), term)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": cities})
}

// GetCity handles GET /api/cities/:id
func (h *Handler) GetCity(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	city, err := h.cities.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("City", id)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": city})
}

// ListCitiesByProvince handles GET /api/cities/by-province/:id
func (h *Handler) ListCitiesByProvince(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cities, err := h.cities.ListByProvince(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": cities})
}

// UpdateCity handles PUT /api/cities/:id.
func (h *Handler) UpdateCity(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.cities.GetByID(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("City", id)
		}
		return err
	}

	var req CityRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequestError("Invalid JSON body")
	}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}

	city := &model.City{
		ID:         id,
		Name:       req.Name,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		ProvinceID: *req.ProvinceID,
	}
	if err := h.checkCityUpdate(c, city); err != nil {
		return err
	}

	if err := h.cities.Update(c.Context(), city); err != nil {
		return writeError(err)
	}
	return c.JSON(fiber.Map{"data": city})
}

// PatchCity handles PATCH /api/cities/:id.
func (h *Handler) PatchCity(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	current, err := h.cities.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("City", id)
		}
		return err
	}

	var patch CityPatch
	if err := c.BodyParser(&patch); err != nil {
		return BadRequestError("Invalid JSON body")
	}

	merged := *current
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Latitude != nil {
		merged.Latitude = *patch.Latitude
	}
	if patch.Longitude != nil {
		merged.Longitude = *patch.Longitude
	}
	if patch.ProvinceID != nil {
		merged.ProvinceID = *patch.ProvinceID
	}

	req := CityRequest{Name: merged.Name, Latitude: &merged.Latitude, Longitude: &merged.Longitude, ProvinceID: &merged.ProvinceID}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}
	if err := h.checkCityUpdate(c, &merged); err != nil {
		return err
	}

	if err := h.cities.Update(c.Context(), &merged); err != nil {
		return writeError(err)
	}
	return c.JSON(fiber.Map{"data": merged})
}

// DeleteCity handles DELETE /api/cities/:id.
func (h *Handler) DeleteCity(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.cities.GetByID(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("City", id)
		}
		return err
	}

	if err := AssertDeletable(c.Context(), "City", "persons", func(ctx context.Context) (int64, error) {
		return h.persons.CountByCity(ctx, id)
	}); err != nil {
		return err
	}

	if err := h.cities.Delete(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("City", id)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

func (h *Handler) checkCityUpdate(c *fiber.Ctx, city *model.City) error {
	if _, err := h.provinces.GetByID(c.Context(), city.ProvinceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Province", city.ProvinceID)
		}
		return err
	}

	if err := AssertKeyAvailable(c.Context(), city.ID, func(ctx context.Context) (*model.City, error) {
		return h.cities.GetByCoords(ctx, city.Latitude, city.Longitude)
	}, func(ct *model.City) int64 { return ct.ID }, "City coordinates already in use"); err != nil {
		return err
	}

	h.warnCityNameCollision(c.Context(), city.Name, city.ProvinceID, city.ID)
	return nil
}

// warnCityNameCollision logs when another city already carries the same name
// within the province. The name key is not enforced at the storage layer;
// coordinate identity wins and the write proceeds.
func (h *Handler) warnCityNameCollision(ctx context.Context, name string, provinceID, selfID int64) {
	dup, err := h.cities.GetByNameInProvince(ctx, name, provinceID)
	if err == nil && dup.ID != selfID {
		log.Printf("WARN: city %q already exists in province %d (existing id %d); proceeding anyway", name, provinceID, dup.ID)
	}
}
