package models

import (
	"fmt"
	"strings"
)

// UserRole is the closed set of roles known to the RBAC layer.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleHOD     UserRole = "HOD"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// Roles lists every valid role.
var Roles = []UserRole{RoleAdmin, RoleHOD, RoleTeacher, RoleStudent}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleHOD, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// ParseRole converts user input into a role.
func ParseRole(raw string) (UserRole, error) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}
