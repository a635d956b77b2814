// Package employee owns staff principals used by the admin surfaces.
// Employees are provisioned out of band (seed data or a back-office tool)
// rather than self-registered.
package employee

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Department scopes what an employee may do on the admin API.
type Department string

const (
	DeptAdmin      Department = "admin"
	DeptOperations Department = "operations"
	DeptSupport    Department = "support"
	DeptAudit      Department = "audit"
)

// Valid reports whether the department is one of the known values.
func (d Department) Valid() bool {
	switch d {
	case DeptAdmin, DeptOperations, DeptSupport, DeptAudit:
		return true
	}
	return false
}

// Employee is a staff principal.
type Employee struct {
	ID           int64
	Code         string // human-facing identifier, e.g. EMP0042
	Username     string
	PasswordHash string
	FullName     string
	Email        string
	Department   Department
	IsActive     bool
	CreatedAt    time.Time
}

// CheckPassword compares the candidate against the stored bcrypt hash.
func (e *Employee) CheckPassword(password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(password))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to check password: %w", err)
	}
	return nil
}
