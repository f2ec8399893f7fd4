package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB interface for database operations.
//
// Lookups return (nil, nil) when nothing matches. Inserts rely on the
// store's unique constraints and report ErrDuplicateEmail or
// ErrDuplicateEnvelope; an envelope whose owner is missing yields
// ErrUnknownOwner.
type DB interface {
	Init() error
	// User operations
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// Envelope operations
	CreateEnvelope(ctx context.Context, e *Envelope) (*Envelope, error)
	GetEnvelopeByName(ctx context.Context, userID int64, name string) (*Envelope, error)
	ListEnvelopesByUser(ctx context.Context, userID int64) ([]*Envelope, error)
}

// Memory DB
type MemDB struct {
	mu        sync.Mutex
	users     map[string]*User
	userIDs   map[int64]*User
	envelopes map[int64]map[string]*Envelope
	userSeq   int64
	envSeq    int64
}

func NewMemoryDB() *MemDB {
	return &MemDB{
		users:     map[string]*User{},
		userIDs:   map[int64]*User{},
		envelopes: map[int64]map[string]*Envelope{},
		userSeq:   1,
		envSeq:    1,
	}
}

func (m *MemDB) Init() error { return nil }

func (m *MemDB) CreateUser(ctx context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return nil, ErrDuplicateEmail
	}
	stored := *u
	stored.ID = m.userSeq
	stored.CreatedAt = time.Now().UTC()
	m.userSeq++
	m.users[stored.Email] = &stored
	m.userIDs[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *MemDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		out := *u
		return &out, nil
	}
	return nil, nil
}

func (m *MemDB) CreateEnvelope(ctx context.Context, e *Envelope) (*Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.userIDs[e.UserID]; !ok {
		return nil, ErrUnknownOwner
	}
	if e.RemainingAmount < 0 || e.RemainingAmount > e.InitialAmount {
		return nil, invalid("amounts must satisfy 0 <= remaining_amount <= initial_amount")
	}
	byName := m.envelopes[e.UserID]
	if byName == nil {
		byName = map[string]*Envelope{}
		m.envelopes[e.UserID] = byName
	}
	if _, ok := byName[e.Name]; ok {
		return nil, ErrDuplicateEnvelope
	}
	stored := *e
	stored.ID = m.envSeq
	stored.CreatedAt = time.Now().UTC()
	m.envSeq++
	byName[stored.Name] = &stored
	out := stored
	return &out, nil
}

func (m *MemDB) GetEnvelopeByName(ctx context.Context, userID int64, name string) (*Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.envelopes[userID][name]; ok {
		out := *e
		return &out, nil
	}
	return nil, nil
}

func (m *MemDB) ListEnvelopesByUser(ctx context.Context, userID int64) ([]*Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Envelope
	for _, e := range m.envelopes[userID] {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SQLite DB
type SQLiteDB struct {
	db   *sql.DB
	path string
}

const sqliteTimeLayout = "2006-01-02 15:04:05"

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMA foreign_keys is per connection and ":memory:" is per connection
	// too, so keep exactly one.
	d.SetMaxOpenConns(1)
	s := &SQLiteDB{db: d, path: path}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS envelop_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(user_id),
			envelope_name TEXT NOT NULL,
			initial_amount INTEGER NOT NULL,
			remaining_amount INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (user_id, envelope_name),
			CHECK (remaining_amount >= 0 AND remaining_amount <= initial_amount)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_envelop_data_user_id ON envelop_data(user_id);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// constraint kinds shared by the SQL adapters
const (
	constraintNone = iota
	constraintUnique
	constraintForeignKey
	constraintCheck
)

func sqliteConstraint(err error) int {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return constraintUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return constraintForeignKey
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return constraintCheck
		}
	}
	// fall back to the message when extended result codes are off
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return constraintUnique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return constraintForeignKey
	case strings.Contains(msg, "CHECK constraint failed"):
		return constraintCheck
	}
	return constraintNone
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (s *SQLiteDB) CreateUser(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(first_name,last_name,email,hashed_password,created_at) VALUES(?,?,?,?,?)`,
		u.FirstName, u.LastName, u.Email, u.HashedPassword, now.Format(sqliteTimeLayout))
	if err != nil {
		if sqliteConstraint(err) == constraintUnique {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	id, _ := res.LastInsertId()
	out := *u
	out.ID = id
	out.CreatedAt = now.Truncate(time.Second)
	return &out, nil
}

func (s *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id,first_name,last_name,email,hashed_password,created_at FROM users WHERE email = ?`, email)
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.HashedPassword, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	u.CreatedAt = parseSQLiteTime(created)
	return &u, nil
}

func (s *SQLiteDB) CreateEnvelope(ctx context.Context, e *Envelope) (*Envelope, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO envelop_data(user_id,envelope_name,initial_amount,remaining_amount,created_at) VALUES(?,?,?,?,?)`,
		e.UserID, e.Name, e.InitialAmount, e.RemainingAmount, now.Format(sqliteTimeLayout))
	if err != nil {
		switch sqliteConstraint(err) {
		case constraintUnique:
			return nil, ErrDuplicateEnvelope
		case constraintForeignKey:
			return nil, ErrUnknownOwner
		case constraintCheck:
			return nil, invalid("amounts must satisfy 0 <= remaining_amount <= initial_amount")
		}
		return nil, fmt.Errorf("inserting envelope: %w", err)
	}
	id, _ := res.LastInsertId()
	out := *e
	out.ID = id
	out.CreatedAt = now.Truncate(time.Second)
	return &out, nil
}

func (s *SQLiteDB) GetEnvelopeByName(ctx context.Context, userID int64, name string) (*Envelope, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,user_id,envelope_name,initial_amount,remaining_amount,created_at FROM envelop_data WHERE user_id = ? AND envelope_name = ?`,
		userID, name)
	var e Envelope
	var created string
	if err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.InitialAmount, &e.RemainingAmount, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting envelope: %w", err)
	}
	e.CreatedAt = parseSQLiteTime(created)
	return &e, nil
}

func (s *SQLiteDB) ListEnvelopesByUser(ctx context.Context, userID int64) ([]*Envelope, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,user_id,envelope_name,initial_amount,remaining_amount,created_at FROM envelop_data WHERE user_id = ? ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing envelopes: %w", err)
	}
	defer rows.Close()
	var out []*Envelope
	for rows.Next() {
		var e Envelope
		var created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.InitialAmount, &e.RemainingAmount, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseSQLiteTime(created)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
