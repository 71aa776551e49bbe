package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite драйвер
)

// Options содержит настройки SQLite базы данных.
type Options struct {
	// MaxOpenConns - максимальное количество открытых соединений
	MaxOpenConns int
	// PingTimeout - таймаут проверки соединения при открытии
	PingTimeout time.Duration
	// WALMode - использовать ли WAL режим
	WALMode bool
	// BusyTimeout - сколько драйвер ждет при SQLITE_BUSY
	BusyTimeout time.Duration
}

// DefaultOptions возвращает настройки для встроенного журнала: один писатель,
// WAL и ожидание блокировки до 5 секунд.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Open открывает файл базы, создавая директорию при необходимости.
// PRAGMA передаются через DSN, поэтому действуют на каждое соединение пула.
func Open(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return open(ctx, buildDSN(path, opts), opts)
}

// OpenInMemory создает in-memory базу для тестов. Пул ограничен одним
// соединением, иначе каждое соединение видело бы свою пустую базу.
func OpenInMemory(ctx context.Context) (*sql.DB, error) {
	opts := DefaultOptions()
	opts.MaxOpenConns = 1
	opts.WALMode = false
	return open(ctx, ":memory:", opts)
}

func open(ctx context.Context, dsn string, opts Options) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

// buildDSN добавляет PRAGMA в формате драйвера modernc: ?_pragma=name(value).
func buildDSN(path string, opts Options) string {
	pragmas := []string{"foreign_keys(1)", "synchronous(NORMAL)"}
	if opts.WALMode {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}
	if opts.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}
