package aggregate

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminRole represents the role of a console account
type AdminRole string

const (
	RoleAdmin      AdminRole = "Admin"
	RoleSuperAdmin AdminRole = "SuperAdmin"
	RoleViewer     AdminRole = "Viewer"
)

// IsValid checks if the role is valid
func (r AdminRole) IsValid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin || r == RoleViewer
}

// Admin is a console operator allowed to act on payout requests
type Admin struct {
	id             string
	name           string
	email          string
	hashedPassword string
	role           AdminRole
	isActive       bool
	lastLoginAt    *time.Time
	version        int
	createdAt      time.Time
	updatedAt      time.Time
}

func NewAdmin(id, name, email, password string, role AdminRole) (*Admin, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role: %s", role)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	return &Admin{
		id:             id,
		name:           name,
		email:          strings.ToLower(email),
		hashedPassword: string(hashedPassword),
		role:           role,
		isActive:       true,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructAdmin reconstructs an admin from database state
func ReconstructAdmin(
	id, name, email, hashedPassword string,
	role AdminRole,
	isActive bool,
	lastLoginAt *time.Time,
	version int,
	createdAt, updatedAt time.Time,
) *Admin {
	return &Admin{
		id:             id,
		name:           name,
		email:          email,
		hashedPassword: hashedPassword,
		role:           role,
		isActive:       isActive,
		lastLoginAt:    lastLoginAt,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (a *Admin) VerifyPassword(password string) error {
	if a.hashedPassword == "" {
		return fmt.Errorf("no password set for admin")
	}
	return bcrypt.CompareHashAndPassword([]byte(a.hashedPassword), []byte(password))
}

func (a *Admin) UpdateLastLogin() {
	now := time.Now().UTC()
	a.lastLoginAt = &now
	a.version++
	a.updatedAt = now
}

// CanProcessPayouts reports whether the admin may move payout requests
func (a *Admin) CanProcessPayouts() bool {
	return a.isActive && (a.role == RoleAdmin || a.role == RoleSuperAdmin)
}

func (a *Admin) ID() string              { return a.id }
func (a *Admin) Name() string            { return a.name }
func (a *Admin) Email() string           { return a.email }
func (a *Admin) HashedPassword() string  { return a.hashedPassword }
func (a *Admin) Role() AdminRole         { return a.role }
func (a *Admin) IsActive() bool          { return a.isActive }
func (a *Admin) LastLoginAt() *time.Time { return a.lastLoginAt }
func (a *Admin) Version() int            { return a.version }
func (a *Admin) CreatedAt() time.Time    { return a.createdAt }
func (a *Admin) UpdatedAt() time.Time    { return a.updatedAt }
