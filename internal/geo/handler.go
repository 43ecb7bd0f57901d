package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/store"
)

// Handler serves the four hierarchy collections.
type Handler struct {
	countries CountryStore
	provinces ProvinceStore
	cities    CityStore
	persons   PersonStore
}

func NewHandler(countries CountryStore, provinces ProvinceStore, cities CityStore, persons PersonStore) *Handler {
	return &Handler{countries: countries, provinces: provinces, cities: cities, persons: persons}
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, BadRequestError("Invalid id: " + c.Params("id"))
	}
	return id, nil
}

// writeError maps storage sentinels left over from write races to the
// Conflict taxonomy; typed AppErrors pass through untouched.
func writeError(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, store.ErrUniqueViolation) {
		return ConflictError("A record with this value already exists")
	}
	return err
}

func listResponse(c *fiber.Ctx, data any, p ListParams, total int64) error {
	return c.JSON(fiber.Map{
		"data": data,
		"meta": fiber.Map{
			"page":  p.Page,
			"limit": p.Limit,
			"total": total,
		},
	})
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
