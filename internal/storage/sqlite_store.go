package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/radio-publisher/internal/spectrum"
)

// SqliteStore archives recording sessions and their published messages in a
// single sqlite file. Writes go through one connection, reads through another.
type SqliteStore struct {
	dbPath string
	now    func() time.Time

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the sqlite file at dbPath.
// Connections are opened lazily, the schema on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath, now: time.Now}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, deviceType, deviceID string, simulated bool, config any) (sessionID int64, err error) {
	configData, err := toConfigData(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, s.now().UTC(), deviceType, deviceID, simulated, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *spectrum.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}
	return loadSession(ctx, db, id)
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*spectrum.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *spectrum.Session
		if sess, err = scanSession(rows); err != nil {
			return
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

// CountMessages returns the number of archived messages of a session
func (s *SqliteStore) CountMessages(ctx context.Context, sessionID int64) (n int, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	if err = db.QueryRowContext(ctx, countMessagesSQL, sessionID).Scan(&n); err != nil {
		err = fmt.Errorf("counting messages: %w", err)
	}
	return
}

func (s *SqliteStore) ReadSpectra(ctx context.Context, sessionID int64, opts ...ReaderOption) (SpectrumReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteSpectrumReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) StoreMessages(ctx context.Context, sessionID int64, records []*MessageRecord) (err error) {
	if len(records) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(records)*8)

	var sb strings.Builder
	sb.WriteString(insertMessageSQL)

	for i, r := range records {
		values = append(values,
			sessionID,
			r.Timestamp,
			r.Type.String(),
			toNullInt64(r.ReadNumber),
			r.CenterFreq,
			r.SampleRate,
			r.Simulated,
			r.Payload,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(insertMessageValuesSQL)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting messages: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*spectrum.Session, error) {
	var sess spectrum.Session
	var config sql.NullString
	if err := row.Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &sess.Simulated, &config); err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}
	return &sess, nil
}

func loadSession(ctx context.Context, db *sql.DB, id int64) (session *spectrum.Session, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	return scanSession(stmt.QueryRowContext(ctx, id))
}
