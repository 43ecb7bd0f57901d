package config

import "testing"

func TestDSN(t *testing.T) {
	pg := DatabaseConfig{
		Driver: "postgres", Host: "localhost", Port: 5432,
		User: "postgres", Password: "pw", Name: "atlas",
	}
	want := "postgres://postgres:pw@localhost:5432/atlas?sslmode=disable"
	if got := pg.DSN(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	sq := DatabaseConfig{Driver: "sqlite", Path: "./data", Name: "atlas"}
	if got := sq.DSN(); got != "./data/atlas.db" {
		t.Errorf("unexpected sqlite DSN: %q", got)
	}
	if !sq.IsSQLite() || pg.IsSQLite() {
		t.Error("driver detection is wrong")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port == 0 {
		t.Error("expected a default server port")
	}
	if cfg.Database.Driver == "" {
		t.Error("expected a default database driver")
	}
	if cfg.JWTExpiry == "" {
		t.Error("expected a default token expiry")
	}
}
