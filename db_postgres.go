package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type PostgresDB struct {
	db  *sql.DB
	dsn string
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	return p.db.Ping()
}

func pqConstraint(err error) int {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return constraintNone
	}
	switch pe.Code.Name() {
	case "unique_violation":
		return constraintUnique
	case "foreign_key_violation":
		return constraintForeignKey
	case "check_violation":
		return constraintCheck
	}
	return constraintNone
}

func (p *PostgresDB) CreateUser(ctx context.Context, u *User) (*User, error) {
	out := *u
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users(first_name,last_name,email,hashed_password) VALUES($1,$2,$3,$4) RETURNING user_id, created_at`,
		u.FirstName, u.LastName, u.Email, u.HashedPassword).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		if pqConstraint(err) == constraintUnique {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return &out, nil
}

func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT user_id,first_name,last_name,email,hashed_password,created_at FROM users WHERE email = $1`, email)
	var u User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.HashedPassword, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	return &u, nil
}

func (p *PostgresDB) CreateEnvelope(ctx context.Context, e *Envelope) (*Envelope, error) {
	out := *e
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO envelop_data(user_id,envelope_name,initial_amount,remaining_amount) VALUES($1,$2,$3,$4) RETURNING id, created_at`,
		e.UserID, e.Name, e.InitialAmount, e.RemainingAmount).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		switch pqConstraint(err) {
		case constraintUnique:
			return nil, ErrDuplicateEnvelope
		case constraintForeignKey:
			return nil, ErrUnknownOwner
		case constraintCheck:
			return nil, invalid("amounts must satisfy 0 <= remaining_amount <= initial_amount")
		}
		return nil, fmt.Errorf("inserting envelope: %w", err)
	}
	return &out, nil
}

func (p *PostgresDB) GetEnvelopeByName(ctx context.Context, userID int64, name string) (*Envelope, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id,user_id,envelope_name,initial_amount,remaining_amount,created_at FROM envelop_data WHERE user_id = $1 AND envelope_name = $2`,
		userID, name)
	var e Envelope
	if err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.InitialAmount, &e.RemainingAmount, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting envelope: %w", err)
	}
	return &e, nil
}

func (p *PostgresDB) ListEnvelopesByUser(ctx context.Context, userID int64) ([]*Envelope, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id,user_id,envelope_name,initial_amount,remaining_amount,created_at FROM envelop_data WHERE user_id = $1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing envelopes: %w", err)
	}
	defer rows.Close()
	var out []*Envelope
	for rows.Next() {
		var e Envelope
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.InitialAmount, &e.RemainingAmount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
