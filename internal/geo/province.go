package geo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

// ProvinceSortable maps exposed sort fields to columns.
var ProvinceSortable = map[string]string{
	"id":        "id",
	"name":      "name",
	"latitude":  "latitude",
	"longitude": "longitude",
	"countryId": "country_id",
}

// ProvinceStore is the storage contract for provinces.
type ProvinceStore interface {
	GetByID(ctx context.Context, id int64) (*model.Province, error)
	GetByCoords(ctx context.Context, lat, lng float64) (*model.Province, error)
	List(ctx context.Context, p ListParams) ([]model.Province, int64, error)
	ListByCountry(ctx context.Context, countryID int64) ([]model.Province, error)
	Search(ctx context.Context, term string) ([]model.Province, error)
	CountByCountry(ctx context.Context, countryID int64) (int64, error)
	Insert(ctx context.Context, p *model.Province) (*model.Province, error)
	Update(ctx context.Context, p *model.Province) error
	Delete(ctx context.Context, id int64) error
}

type provinceStore struct {
	s *store.Store
}

func NewProvinceStore(s *store.Store) ProvinceStore {
	return &provinceStore{s: s}
}

const provinceColumns = "id, name, latitude, longitude, country_id"

func scanProvinceRow(row *sql.Row) (*model.Province, error) {
	var p model.Province
	if err := row.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.CountryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *provinceStore) queryProvinces(ctx context.Context, sqlStr string, args ...any) ([]model.Province, error) {
	rows, err := r.s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	provinces := []model.Province{}
	for rows.Next() {
		var p model.Province
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.CountryID); err != nil {
			return nil, err
		}
		provinces = append(provinces, p)
	}
	return provinces, rows.Err()
}

func (r *provinceStore) GetByID(ctx context.Context, id int64) (*model.Province, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM provinces WHERE id = %s", provinceColumns, pb.Add(id))
	return scanProvinceRow(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *provinceStore) GetByCoords(ctx context.Context, lat, lng float64) (*model.Province, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM provinces WHERE latitude = %s AND longitude = %s",
		provinceColumns, pb.Add(lat), pb.Add(lng))
	return scanProvinceRow(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *provinceStore) List(ctx context.Context, p ListParams) ([]model.Province, int64, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM provinces", provinceColumns) + p.OrderLimitSQL(pb)

	provinces, err := r.queryProvinces(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list provinces: %w", err)
	}

	var total int64
	if err := r.s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM provinces").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count provinces: %w", err)
	}
	return provinces, total, nil
}

func (r *provinceStore) ListByCountry(ctx context.Context, countryID int64) ([]model.Province, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM provinces WHERE country_id = %s ORDER BY name",
		provinceColumns, pb.Add(countryID))
	provinces, err := r.queryProvinces(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list provinces by country: %w", err)
	}
	return provinces, nil
}

func (r *provinceStore) Search(ctx context.Context, term string) ([]model.Province, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM provinces WHERE %s ORDER BY name",
		provinceColumns, r.s.Dialect.ContainsExpr("name", pb, term))
	provinces, err := r.queryProvinces(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("search provinces: %w", err)
	}
	return provinces, nil
}

func (r *provinceStore) CountByCountry(ctx context.Context, countryID int64) (int64, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT COUNT(*) FROM provinces WHERE country_id = %s", pb.Add(countryID))
	var n int64
	err := r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&n)
	return n, err
}

func (r *provinceStore) Insert(ctx context.Context, p *model.Province) (*model.Province, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO provinces (name, latitude, longitude, country_id) VALUES (%s, %s, %s, %s) RETURNING id",
		pb.Add(p.Name), pb.Add(p.Latitude), pb.Add(p.Longitude), pb.Add(p.CountryID))

	created := *p
	if err := r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&created.ID); err != nil {
		return nil, r.s.Dialect.MapError(err)
	}
	return &created, nil
}

func (r *provinceStore) Update(ctx context.Context, p *model.Province) error {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"UPDATE provinces SET name = %s, latitude = %s, longitude = %s, country_id = %s, updated_at = %s WHERE id = %s",
		pb.Add(p.Name), pb.Add(p.Latitude), pb.Add(p.Longitude), pb.Add(p.CountryID),
		r.s.Dialect.NowExpr(), pb.Add(p.ID))

	n, err := r.s.Exec(ctx, r.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *provinceStore) Delete(ctx context.Context, id int64) error {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM provinces WHERE id = %s", pb.Add(id))

	n, err := r.s.Exec(ctx, r.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
