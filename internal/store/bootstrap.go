package store

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// Bootstrap creates the reference dataset tables and seeds a default admin
// so a fresh deployment has at least one account able to mutate the hierarchy.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.TablesSQL()); err != nil {
		return fmt.Errorf("bootstrap tables: %w", err)
	}
	if err := s.seedAdmin(ctx); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func (s *Store) seedAdmin(ctx context.Context) error {
	var count int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM persons").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	pb := s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`INSERT INTO persons (first_name, last_name, email, password_hash, role) VALUES (%s, %s, %s, %s, %s)`,
		pb.Add("Default"), pb.Add("Admin"), pb.Add("admin@localhost"), pb.Add(string(hash)), pb.Add("ADMIN"),
	)
	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return err
	}

	log.Println("WARNING: Default admin created (admin@localhost / changeme), change the password immediately.")
	return nil
}
