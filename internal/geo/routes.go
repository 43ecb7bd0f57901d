package geo

import "github.com/gofiber/fiber/v2"

// RegisterRoutes wires the four collections onto the app. Middleware is
// injected so this package stays independent of the token mechanics:
// requireAuth validates the session, requireAdmin and requireStaff gate the
// role sets (ADMIN, and ADMIN|MODERATOR respectively).
func RegisterRoutes(app *fiber.App, h *Handler, requireAuth, requireAdmin, requireStaff fiber.Handler) {
	api := app.Group("/api")

	countries := api.Group("/countries")
	countries.Get("/", h.ListCountries)
	countries.Get("/search", h.SearchCountries)
	countries.Get("/:id", h.GetCountry)
	countries.Post("/", requireAuth, requireAdmin, h.CreateCountry)
	countries.Put("/:id", requireAuth, requireAdmin, h.UpdateCountry)
	countries.Patch("/:id", requireAuth, requireAdmin, h.PatchCountry)
	countries.Delete("/:id", requireAuth, requireAdmin, h.DeleteCountry)

	provinces := api.Group("/provinces")
	provinces.Get("/", h.ListProvinces)
	provinces.Get("/search", h.SearchProvinces)
	provinces.Get("/by-country/:id", h.ListProvincesByCountry)
	provinces.Get("/:id", h.GetProvince)
	provinces.Post("/", requireAuth, requireAdmin, h.CreateProvince)
	provinces.Put("/:id", requireAuth, requireAdmin, h.UpdateProvince)
	provinces.Patch("/:id", requireAuth, requireAdmin, h.PatchProvince)
	provinces.Delete("/:id", requireAuth, requireAdmin, h.DeleteProvince)

	cities := api.Group("/cities")
	cities.Get("/", h.ListCities)
	cities.Get("/search", h.SearchCities)
	cities.Get("/by-province/:id", h.ListCitiesByProvince)
	cities.Get("/:id", h.GetCity)
	cities.Post("/", requireAuth, requireAdmin, h.CreateCity)
	cities.Put("/:id", requireAuth, requireAdmin, h.UpdateCity)
	cities.Patch("/:id", requireAuth, requireAdmin, h.PatchCity)
	cities.Delete("/:id", requireAuth, requireAdmin, h.DeleteCity)

	persons := api.Group("/persons")
	persons.Get("/", requireAuth, requireStaff, h.ListPersons)
	persons.Get("/search", requireAuth, requireStaff, h.SearchPersons)
	persons.Get("/by-city/:id", h.ListPersonsByCity)
	persons.Get("/:id", requireAuth, requireStaff, h.GetPerson)
	persons.Post("/", requireAuth, requireAdmin, h.CreatePerson)
	persons.Put("/:id", requireAuth, requireAdmin, h.UpdatePerson)
	persons.Patch("/:id", requireAuth, requireAdmin, h.PatchPerson)
	persons.Delete("/:id", requireAuth, requireAdmin, h.DeletePerson)
}
