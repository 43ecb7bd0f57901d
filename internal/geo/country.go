package geo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

// CountrySortable maps exposed sort fields to columns.
var CountrySortable = map[string]string{
	"id":   "id",
	"name": "name",
	"code": "code",
}

// CountryStore is the storage contract for countries. Lookups return
// store.ErrNotFound when no row matches; writes surface
// store.ErrUniqueViolation when a unique key is already taken.
type CountryStore interface {
	GetByID(ctx context.Context, id int64) (*model.Country, error)
	GetByName(ctx context.Context, name string) (*model.Country, error)
	GetByCode(ctx context.Context, code string) (*model.Country, error)
	List(ctx context.Context, p ListParams) ([]model.Country, int64, error)
	Search(ctx context.Context, term string) ([]model.Country, error)
	Insert(ctx context.Context, c *model.Country) (*model.Country, error)
	Update(ctx context.Context, c *model.Country) error
	Delete(ctx context.Context, id int64) error
}

type countryStore struct {
	s *store.Store
}

func NewCountryStore(s *store.Store) CountryStore {
	return &countryStore{s: s}
}

const countryColumns = "id, name, code"

func scanCountry(row *sql.Row) (*model.Country, error) {
	var c model.Country
	if err := row.Scan(&c.ID, &c.Name, &c.Code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *countryStore) GetByID(ctx context.Context, id int64) (*model.Country, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM countries WHERE id = %s", countryColumns, pb.Add(id))
	return scanCountry(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *countryStore) GetByName(ctx context.Context, name string) (*model.Country, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM countries WHERE name = %s", countryColumns, pb.Add(name))
	return scanCountry(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *countryStore) GetByCode(ctx context.Context, code string) (*model.Country, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM countries WHERE code = %s", countryColumns, pb.Add(code))
	return scanCountry(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *countryStore) List(ctx context.Context, p ListParams) ([]model.Country, int64, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM countries", countryColumns) + p.OrderLimitSQL(pb)

	rows, err := r.s.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	countries := []model.Country{}
	for rows.Next() {
		var c model.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Code); err != nil {
			return nil, 0, err
		}
		countries = append(countries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM countries").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count countries: %w", err)
	}
	return countries, total, nil
}

func (r *countryStore) Search(ctx context.Context, term string) ([]model.Country, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM countries WHERE %s ORDER BY name",
		countryColumns, r.s.Dialect.ContainsExpr("name", pb, term))

	rows, err := r.s.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("search countries: %w", err)
	}
	defer rows.Close()

	countries := []model.Country{}
	for rows.Next() {
		var c model.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Code); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

func (r *countryStore) Insert(ctx context.Context, c *model.Country) (*model.Country, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("INSERT INTO countries (name, code) VALUES (%s, %s) RETURNING id",
		pb.Add(c.Name), pb.Add(c.Code))

	created := *c
	if err := r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&created.ID); err != nil {
		return nil, r.s.Dialect.MapError(err)
	}
	return &created, nil
}

func (r *countryStore) Update(ctx context.Context, c *model.Country) error {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("UPDATE countries SET name = %s, code = %s, updated_at = %s WHERE id = %s",
		pb.Add(c.Name), pb.Add(c.Code), r.s.Dialect.NowExpr(), pb.Add(c.ID))

	n, err := r.s.Exec(ctx, r.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *countryStore) Delete(ctx context.Context, id int64) error {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM countries WHERE id = %s", pb.Add(id))

	n, err := r.s.Exec(ctx, r.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
