package geo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

// PersonSortable maps exposed sort fields to columns.
var PersonSortable = map[string]string{
	"id":        "id",
	"firstName": "first_name",
	"lastName":  "last_name",
	"email":     "email",
	"role":      "role",
	"cityId":    "city_id",
}

// PersonStore is the storage contract for persons.
type PersonStore interface {
	GetByID(ctx context.Context, id int64) (*model.Person, error)
	GetByEmail(ctx context.Context, email string) (*model.Person, error)
	List(ctx context.Context, p ListParams) ([]model.Person, int64, error)
	ListByCity(ctx context.Context, cityID int64) ([]model.Person, error)
	// Search matches the term against first and last name.
	Search(ctx context.Context, term string) ([]model.Person, error)
	CountByCity(ctx context.Context, cityID int64) (int64, error)
	Insert(ctx context.Context, p *model.Person) (*model.Person, error)
	Update(ctx context.Context, p *model.Person) error
	Delete(ctx context.Context, id int64) error
}

type personStore struct {
	s *store.Store
}

func NewPersonStore(s *store.Store) PersonStore {
	return &personStore{s: s}
}

const personColumns = "id, first_name, last_name, email, password_hash, role, city_id"

func scanPersonRow(row *sql.Row) (*model.Person, error) {
	var p model.Person
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PasswordHash, &p.Role, &p.CityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *personStore) queryPersons(ctx context.Context, sqlStr string, args ...any) ([]model.Person, error) {
	rows, err := r.s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	persons := []model.Person{}
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PasswordHash, &p.Role, &p.CityID); err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

func (r *personStore) GetByID(ctx context.Context, id int64) (*model.Person, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM persons WHERE id = %s", personColumns, pb.Add(id))
	return scanPersonRow(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *personStore) GetByEmail(ctx context.Context, email string) (*model.Person, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM persons WHERE email = %s", personColumns, pb.Add(email))
	return scanPersonRow(r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...))
}

func (r *personStore) List(ctx context.Context, p ListParams) ([]model.Person, int64, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM persons", personColumns) + p.OrderLimitSQL(pb)

	persons, err := r.queryPersons(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list persons: %w", err)
	}

	var total int64
	if err := r.s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM persons").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count persons: %w", err)
	}
	return persons, total, nil
}

func (r *personStore) ListByCity(ctx context.Context, cityID int64) ([]model.Person, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM persons WHERE city_id = %s ORDER BY last_name, first_name",
		personColumns, pb.Add(cityID))
	persons, err := r.queryPersons(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list persons by city: %w", err)
	}
	return persons, nil
}

func (r *personStore) Search(ctx context.Context, term string) ([]model.Person, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM persons WHERE %s OR %s ORDER BY last_name, first_name",
		personColumns,
		r.s.Dialect.ContainsExpr("first_name", pb, term),
		r.s.Dialect.ContainsExpr("last_name", pb, term))
	persons, err := r.queryPersons(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("search persons: %w", err)
	}
	return persons, nil
}

func (r *personStore) CountByCity(ctx context.Context, cityID int64) (int64, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT COUNT(*) FROM persons WHERE city_id = %s", pb.Add(cityID))
	var n int64
	err := r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&n)
	return n, err
}

func (r *personStore) Insert(ctx context.Context, p *model.Person) (*model.Person, error) {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO persons (first_name, last_name, email, password_hash, role, city_id) VALUES (%s, %s, %s, %s, %s, %s) RETURNING id",
		pb.Add(p.FirstName), pb.Add(p.LastName), pb.Add(p.Email), pb.Add(p.PasswordHash),
		pb.Add(string(p.Role)), pb.Add(p.CityID))

	created := *p
	if err := r.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&created.ID); err != nil {
		return nil, r.s.Dialect.MapError(err)
	}
	return &created, nil
}

func (r *personStore) Update(ctx context.Context, p *model.Person) error {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"UPDATE persons SET first_name = %s, last_name = %s, email = %s, password_hash = %s, role = %s, city_id = %s, updated_at = %s WHERE id = %s",
		pb.Add(p.FirstName), pb.Add(p.LastName), pb.Add(p.Email), pb.Add(p.PasswordHash),
		pb.Add(string(p.Role)), pb.Add(p.CityID), r.s.Dialect.NowExpr(), pb.Add(p.ID))

	n, err := r.s.Exec(ctx, r.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *personStore) Delete(ctx context.Context, id int64) error {
	pb := r.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM persons WHERE id = %s", pb.Add(id))

	n, err := r.s.Exec(ctx, r.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
