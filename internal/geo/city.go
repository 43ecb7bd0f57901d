package geo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

// CitySortable maps exposed sort fields to columns.
var CitySortable = map[string]string{
	"id":         "id",
	"name":       "name",
	"latitude":   "latitude",
	"longitude":  "longitude",
	"provinceId": "province_id",
}

// CityStore is the storage contract for cities.
type CityStore interface {
	GetByID(ctx context.Context, id int64) (*model.City, error)
	GetByCoords(ctx context.Context, lat, lng float64) (*model.City, error)
	// GetByNameInProvince finds a city by exact name within a province.
	GetByNameInProvince(ctx context.Context, name string, provinceID int64) (*model.City, error)
	// GetByNameAndProvinceName resolves a city by its name and its province's
	// name, the lookup path used during registration.
	GetByNameAndProvinceName(ctx context.Context, cityName, provinceName string) (*model.City, error)
	List(ctx context.Context, p ListParams) ([]model.City, int64, error)
	ListByProvince(ctx context.Context, provinceID int64) ([]model.City, error)
	Search(ctx context.Context, term string) ([]model.City, error)
	CountByProvince(ctx context.Context, provinceID int64) (int64, error)
	Insert(ctx context.Context, c *model.City) (*model.City, error)
	Update(ctx context.Context, c *model.City) error
	Delete(ctx context.Context, id int64) error
}

type cityStore struct {
	s *store.Store
}

func NewCityStore(s *store.Store) CityStore {
	return &cityStore{s: s}
}

const cityColumns = "id, name, latitude, longitude, province_id"

func scanCityRow(row *sql.Row) (*model.City, error) {
	var c model.City
	if err := row.Scan(&c.ID, &c.Name, &c.Latitude, &c.Longitude, &c.ProvinceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *cityStore) queryCities(ctx context.Context, sqlStr string, args ...any) ([]model.City, error) {
	rows, err := r.s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cities := []model.City{}
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name, &c.Latitude, &c.Longitude, &c.ProvinceID); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (r *cityStore) GetByID(ctx context.Context, id int64) (*model.City, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM cities WHERE id = %s", cityColumns, pb.Add(id))
	return scanCityRow(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *cityStore) GetByCoords(ctx context.Context, lat, lng float64) (*model.City, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM cities WHERE latitude = %s AND longitude = %s",
		cityColumns, pb.Add(lat), pb.Add(lng))
	return scanCityRow(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *cityStore) GetByNameInProvince(ctx context.Context, name string, provinceID int64) (*model.City, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM cities WHERE name = %s AND province_id = %s",
		cityColumns, pb.Add(name), pb.Add(provinceID))
	return scanCityRow(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *cityStore) GetByNameAndProvinceName(ctx context.Context, cityName, provinceName string) (*model.City, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`SELECT c.id, c.name, c.latitude, c.longitude, c.province_id
		 FROM cities c JOIN provinces p ON p.id = c.province_id
		 WHERE c.name = %s AND p.name = %s`,
		pb.Add(cityName), pb.Add(provinceName))
	return scanCityRow(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *cityStore) List(ctx context.Context, p ListParams) ([]model.City, int64, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM cities", cityColumns) + p.OrderLimitSQL(pb)

	cities, err := r.queryCities(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cities: %w", err)
	}

	var total int64
	if err := r.s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM cities").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cities: %w", err)
	}
	return cities, total, nil
}

func (r *cityStore) ListByProvince(ctx context.Context, provinceID int64) ([]model.City, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM cities WHERE province_id = %s ORDER BY name",
		cityColumns, pb.Add(provinceID))
	cities, err := r.queryCities(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list cities by province: %w", err)
	}
	return cities, nil
}

func (r *cityStore) Search(ctx context.Context, term string) ([]model.City, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM cities WHERE %s ORDER BY name",
		cityColumns, r.s.Dialect.ContainsExpr("name", pb, term))
	cities, err := r.queryCities(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("search cities: %w", err)
	}
	return cities, nil
}

func (r *cityStore) CountByProvince(ctx context.Context, provinceID int64) (int64, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT COUNT(*) FROM cities WHERE province_id = %s", pb.Add(provinceID))
	var n int64
	err := r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&n)
	return n, err
}

func (r *cityStore) Insert(ctx context.Context, c *model.City) (*model.City, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO cities (name, latitude, longitude, province_id) VALUES (%s, %s, %s, %s) RETURNING id",
		pb.Add(c.Name), pb.Add(c.Latitude), pb.Add(c.Longitude), pb.Add(c.ProvinceID))

	created := *c
	if err := r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&created.ID); err != nil {
		return nil, r.s.Dialect.MapError(err)
	}
	return &created, nil
}

func (r *cityStore) Update(ctx context.Context, c *model.City) error {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"UPDATE cities SET name = %s, latitude = %s, longitude = %s, province_id = %s, updated_at = %s WHERE id = %s",
		pb.Add(c.Name), pb.Add(c.Latitude), pb.Add(c.Longitude), pb.Add(c.ProvinceID),
		r.s.Dialect.NowExpr(), pb.Add(c.ID))

	n, err := r.s.Exec(ctx, r.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *cityStore) Delete(ctx context.Context, id int64) error {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM cities WHERE id = %s", pb.Add(id))

	n, err := r.s.Exec(ctx, r.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
