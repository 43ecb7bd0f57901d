package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"atlas-backend/internal/auth"
	"atlas-backend/internal/config"
	"atlas-backend/internal/geo"
	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s/%s)", cfg.Server.Port, cfg.Database.Driver, cfg.Database.Name)

	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap tables: %v", err)
	}
	log.Println("Tables ready")

	countries := geo.NewCountryStore(db)
	provinces := geo.NewProvinceStore(db)
	cities := geo.NewCityStore(db)
	persons := geo.NewPersonStore(db)

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	requireAuth := auth.RequireAuth(cfg.JWTSecret)
	requireAdmin := auth.RequireRoles(model.RoleAdmin)
	requireStaff := auth.RequireRoles(model.RoleAdmin, model.RoleModerator)

	authHandler := auth.NewHandler(persons, cities, cfg.JWTSecret, auth.ParseExpiry(cfg.JWTExpiry))
	auth.RegisterRoutes(app, authHandler, requireAuth)

	geoHandler := geo.NewHandler(countries, provinces, cities, persons)
	geo.RegisterRoutes(app, geoHandler, requireAuth, requireAdmin, requireStaff)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *geo.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(geo.ErrorResponse{Error: appErr})
	}

	if errors.Is(err, store.ErrUniqueViolation) {
		conflict := geo.ConflictError("A record with this value already exists")
		return c.Status(conflict.Status).JSON(geo.ErrorResponse{Error: conflict})
	}
	if errors.Is(err, store.ErrNotFound) {
		notFound := geo.NewAppError("NOT_FOUND", 404, "Not found")
		return c.Status(404).JSON(geo.ErrorResponse{Error: notFound})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(geo.ErrorResponse{
		Error: &geo.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
