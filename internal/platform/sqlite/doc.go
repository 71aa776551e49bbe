// Package sqlite предоставляет инфраструктуру SQLite для журнала запусков.
//
// Открытие базы и применение встроенных миграций:
//
//	db, err := sqlite.Open(ctx, "data/neotask.db", sqlite.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	if _, err := sqlite.Migrate(db, migrations.FS, "sqlite"); err != nil {
//		return err
//	}
//
// Транзакции с повтором на SQLITE_BUSY:
//
//	err = sqlite.WithinTx(ctx, db, func(tx *sql.Tx) error {
//		_, err := tx.ExecContext(ctx, "INSERT INTO runs ...")
//		return err
//	})
//
// Для тестов используйте OpenInMemory.
package sqlite
