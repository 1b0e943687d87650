package storage

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteTrackStore хранит результаты сопровождения в SQLite
type SQLiteTrackStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteTrackStore открывает базу по пути path и применяет миграции
func NewSQLiteTrackStore(path string, logger *zap.Logger) (*SQLiteTrackStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	// одно соединение: запись в SQLite всё равно сериализуется
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set busy_timeout")
	}

	s := &SQLiteTrackStore{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp применяет встроенные миграции, отсутствие изменений не ошибка
func (s *SQLiteTrackStore) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "open embedded migrations")
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "create sqlite migrate driver")
	}
	// m не закрывается: вместе с ним закрылось бы соединение s.db
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return errors.Wrap(err, "create migrate instance")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up failed")
	}
	version, _, _ := m.Version()
	s.logger.Info("track store ready", zap.Uint("schema_version", version))
	return nil
}

// SaveRecord сохраняет результат кадра; повторная запись того же кадра заменяет прежнюю
func (s *SQLiteTrackStore) SaveRecord(ctx context.Context, rec entity.TrackRecord) error {
	if rec.SessionID == "" {
		return errors.New("track record has no session id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO track_records
			(session_id, user_id, frame, x, y, width, height, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.UserID, rec.Frame,
		rec.BBox.X, rec.BBox.Y, rec.BBox.Width, rec.BBox.Height,
		rec.Score, rec.CreatedAt.UnixNano(),
	)
	return errors.Wrapf(err, "save frame %d of session %s", rec.Frame, rec.SessionID)
}

// History возвращает записи сессии по возрастанию номера кадра
func (s *SQLiteTrackStore) History(ctx context.Context, sessionID string) ([]entity.TrackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_id, frame, x, y, width, height, score, created_at
		FROM track_records
		WHERE session_id = ?
		ORDER BY frame`, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "query session %s", sessionID)
	}
	defer rows.Close()

	var out []entity.TrackRecord
	for rows.Next() {
		var (
			rec     entity.TrackRecord
			created int64
		)
		if err := rows.Scan(&rec.SessionID, &rec.UserID, &rec.Frame,
			&rec.BBox.X, &rec.BBox.Y, &rec.BBox.Width, &rec.BBox.Height,
			&rec.Score, &created); err != nil {
			return nil, errors.Wrap(err, "scan track record")
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate track records")
}

// Close закрывает базу
func (s *SQLiteTrackStore) Close() error {
	return s.db.Close()
}

var _ port.TrackStore = (*SQLiteTrackStore)(nil)
