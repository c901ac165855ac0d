package store

import (
	"context"
	"fmt"
	"time"
)

// AdminUser is a login for the admin endpoints.
type AdminUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateAdminUser stores a user with an already hashed password.
func (db *DB) CreateAdminUser(ctx context.Context, username, passwordHash string) (*AdminUser, error) {
	u := &AdminUser{Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	id, err := db.insertID(ctx, `INSERT INTO admin_users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, db.ts(u.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("create admin user %q: %w", username, err)
	}
	u.ID = id
	return u, nil
}

// GetAdminUser returns sql.ErrNoRows for an unknown username.
func (db *DB) GetAdminUser(ctx context.Context, username string) (*AdminUser, error) {
	u := &AdminUser{}
	var createdAt any
	row := db.QueryRowContext(ctx, db.Q(`SELECT id, username, password_hash, created_at FROM admin_users WHERE username=?`), username)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// AdminUserExists reports whether any admin user has been created.
func (db *DB) AdminUserExists(ctx context.Context) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admin_users)`).Scan(&exists)
	return exists, err
}
