package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	migrate "github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrate применяет миграции из dir внутри fsys (обычно embed.FS) к открытой базе
// и возвращает итоговую версию. Повторный вызов безопасен: migrate.ErrNoChange
// ошибкой не считается.
//
// Экземпляр migrate не закрывается: драйвер закрыл бы переданный *sql.DB.
func Migrate(db *sql.DB, fsys fs.FS, dir string) (uint, error) {
	m, src, err := newMigrator(db, fsys, dir)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return version(m)
}

// Version возвращает текущую версию схемы; 0 - миграции не применялись.
func Version(db *sql.DB, fsys fs.FS, dir string) (uint, error) {
	m, src, err := newMigrator(db, fsys, dir)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()
	return version(m)
}

func newMigrator(db *sql.DB, fsys fs.FS, dir string) (*migrate.Migrate, interface{ Close() error }, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open migrations %s: %w", dir, err)
	}
	drv, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, src, nil
}

func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}
