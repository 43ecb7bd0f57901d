package geo

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

type ProvinceRequest struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	CountryID *int64   `json:"countryId"`
}

func (r *ProvinceRequest) validate() []ErrorDetail {
	var details []ErrorDetail
	if blank(r.Name) {
		details = append(details, ErrorDetail{Field: "name", Rule: "required", Message: "Name is required"})
	}
	details = append(details, validateCoords(r.Latitude, r.Longitude)...)
	if r.CountryID == nil {
		details = append(details, ErrorDetail{Field: "countryId", Rule: "required", Message: "countryId is required"})
	}
	return details
}

type ProvincePatch struct {
	Name      *string  `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	CountryID *int64   `json:"countryId"`
}

func validateCoords(lat, lng *float64) []ErrorDetail {
	var details []ErrorDetail
	if lat == nil {
		details = append(details, ErrorDetail{Field: "latitude", Rule: "required", Message: "latitude is required"})
	} else if *lat < -90 || *lat > 90 {
		details = append(details, ErrorDetail{Field: "latitude", Rule: "range", Message: "latitude must be between -90 and 90"})
	}
	if lng == nil {
		details = append(details, ErrorDetail{Field: "longitude", Rule: "required", Message: "longitude is required"})
	} else if *lng < -180 || *lng > 180 {
		details = append(details, ErrorDetail{Field: "longitude", Rule: "range", Message: "longitude must be between -180 and 180"})
	}
	return details
}

// CreateProvince handles POST /api/provinces. The parent country must exist;
// creation is idempotent on the coordinate pair.
func (h *Handler) CreateProvince(c *fiber.Ctx) error {
	var req ProvinceRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequestError("Invalid JSON body")
	}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}

	if _, err := h.countries.GetByID(c.Context(), *req.CountryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Country", *req.CountryID)
		}
		return err
	}

	probe := func(ctx context.Context) (*model.Province, error) {
		return h.provinces.GetByCoords(ctx, *req.Latitude, *req.Longitude)
	}
	insert := func(ctx context.Context) (*model.Province, error) {
		return h.provinces.Insert(ctx, &model.Province{
			Name:      req.Name,
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
			CountryID: *req.CountryID,
		})
	}

	province, _, err := Resolve(c.Context(), probe, insert)
	if err != nil {
		return writeError(err)
	}
	return c.Status(201).JSON(fiber.Map{"data": province})
}

// ListProvinces handles GET /api/provinces.
func (h *Handler) ListProvinces(c *fiber.Ctx) error {
	params, err := ParseListParams(c, ProvinceSortable)
	if err != nil {
		return err
	}
	provinces, total, err := h.provinces.List(c.Context(), params)
	if err != nil {
		return err
	}
	return listResponse(c, provinces, params, total)
}

// SearchProvinces handles GET /api/provinces/search?name=
func (h *Handler) SearchProvinces(c *fiber.Ctx) error {
	term, err := ParseSearchTerm(c)
	if err != nil {
		return err
	}
	provinces, err := h.provinces.Search(c.Context(), term)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": provinces})
}

// GetProvince handles GET /api/provinces/:id
func (h *Handler) GetProvince(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	province, err := h.provinces.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Province", id)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": province})
}

// ListProvincesByCountry handles GET /api/provinces/by-country/:id
func (h *Handler) ListProvincesByCountry(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	provinces, err := h.provinces.ListByCountry(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": provinces})
}

// UpdateProvince handles PUT /api/provinces/:id. A parent change re-validates
// that the new country exists; coordinates must stay globally unique.
func (h *Handler) UpdateProvince(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.provinces.GetByID(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Province", id)
		}
		return err
	}

	var req ProvinceRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequestError("Invalid JSON body")
	}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}

	province := &model.Province{
		ID:        id,
		Name:      req.Name,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		CountryID: *req.CountryID,
	}
	if err := h.checkProvinceUpdate(c, province); err != nil {
		return err
	}

	if err := h.provinces.Update(c.Context(), province); err != nil {
		return writeError(err)
	}
	return c.JSON(fiber.Map{"data": province})
}

// PatchProvince handles PATCH /api/provinces/:id.
func (h *Handler) PatchProvince(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	current, err := h.provinces.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Province", id)
		}
		return err
	}

	var patch ProvincePatch
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
	if patch.CountryID != nil {
		merged.CountryID = *patch.CountryID
	}

	req := ProvinceRequest{Name: merged.Name, Latitude: &merged.Latitude, Longitude: &merged.Longitude, CountryID: &merged.CountryID}
	if details := req.validate(); len(details) > 0 {
		return ValidationError(details)
	}
	if err := h.checkProvinceUpdate(c, &merged); err != nil {
		return err
	}

	if err := h.provinces.Update(c.Context(), &merged); err != nil {
		return writeError(err)
	}
	return c.JSON(fiber.Map{"data": merged})
}

// DeleteProvince handles DELETE /api/provinces/:id.
func (h *Handler) DeleteProvince(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.provinces.GetByID(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Province", id)
		}
		return err
	}

	if err := AssertDeletable(c.Context(), "Province", "cities", func(ctx context.Context) (int64, error) {
		return h.cities.CountByProvince(ctx, id)
	}); err != nil {
		return err
	}

	if err := h.provinces.Delete(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Province", id)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

func (h *Handler) checkProvinceUpdate(c *fiber.Ctx, province *model.Province) error {
	if _, err := h.countries.GetByID(c.Context(), province.CountryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("Country", province.CountryID)
		}
		return err
	}

	return AssertKeyAvailable(c.Context(), province.ID, func(ctx context.Context) (*model.Province, error) {
		return h.provinces.GetByCoords(ctx, province.Latitude, province.Longitude)
	}, func(p *model.Province) int64 { return p.ID }, "Province coordinates already in use")
}
