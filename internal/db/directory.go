package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oinkbank/ledger/internal/models"
)

// Users, branches and addresses are plain soft-deleted records.

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, phone, password_hash, admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.Email, u.Phone, u.PasswordHash, u.Admin, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("username, email or phone already taken: %w", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, phone, password_hash, admin, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.Admin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND deleted_at IS NULL`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.Admin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// UpdateUser patches the non-nil fields of a live user. A nil pointer
// leaves the column untouched via COALESCE.
func (p *Postgres) UpdateUser(ctx context.Context, id uuid.UUID, username, email, phone, passwordHash *string, admin *bool) (*models.User, error) {
	query := `UPDATE users SET
			username = COALESCE($2, username),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			password_hash = COALESCE($5, password_hash),
			admin = COALESCE($6, admin),
			updated_at = $7
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns

	user, err := scanUser(p.db.QueryRowContext(ctx, query,
		id, username, email, phone, passwordHash, admin, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("username, email or phone already taken: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (p *Postgres) SoftDeleteUser(ctx context.Context, id uuid.UUID) error {
	return p.softDelete(ctx, "users", id)
}

func (p *Postgres) CreateBranch(ctx context.Context, b *models.Branch) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO branches (id, name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.Name, b.Phone, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

func (p *Postgres) GetBranch(ctx context.Context, id uuid.UUID) (*models.Branch, error) {
	var b models.Branch
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, phone, created_at, updated_at
		FROM branches WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&b.ID, &b.Name, &b.Phone, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	return &b, nil
}

func (p *Postgres) ListBranches(ctx context.Context) ([]*models.Branch, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, phone, created_at, updated_at
		FROM branches WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var branches []*models.Branch
	for rows.Next() {
		var b models.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Phone, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, &b)
	}
	return branches, rows.Err()
}

// UpdateBranch patches the non-nil fields of a live branch.
func (p *Postgres) UpdateBranch(ctx context.Context, id uuid.UUID, name, phone *string) (*models.Branch, error) {
	query := `UPDATE branches SET
			name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, name, phone, created_at, updated_at`

	var b models.Branch
	err := p.db.QueryRowContext(ctx, query, id, name, phone, time.Now().UTC()).
		Scan(&b.ID, &b.Name, &b.Phone, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update branch: %w", err)
	}
	return &b, nil
}

func (p *Postgres) SoftDeleteBranch(ctx context.Context, id uuid.UUID) error {
	return p.softDelete(ctx, "branches", id)
}

func (p *Postgres) CreateAddress(ctx context.Context, a *models.Address) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO addresses (id, user_id, street, city, province, postal_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.Street, a.City, a.Province, a.PostalCode, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

func (p *Postgres) GetAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var a models.Address
	err := p.db.QueryRowContext(ctx,
		`SELECT id, user_id, street, city, province, postal_code, created_at, updated_at
		FROM addresses WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.Province, &a.PostalCode, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &a, nil
}

func (p *Postgres) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Address, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, street, city, province, postal_code, created_at, updated_at
		FROM addresses WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*models.Address
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.Province, &a.PostalCode, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, &a)
	}
	return addresses, rows.Err()
}

func (p *Postgres) SoftDeleteAddress(ctx context.Context, id uuid.UUID) error {
	return p.softDelete(ctx, "addresses", id)
}
