package core

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// ROLE RESOLVER - Identity/role provider contract (external collaborator)
// =============================================================================

// RoleResolver maps an employee to their role. The engine only needs this
// to validate that a decider matches the current approval step; user and
// permission management live outside this module.
type RoleResolver interface {
	RoleOf(ctx context.Context, id EmployeeID) (string, error)
}

// ErrUnknownEmployee is returned when the role provider has no record of
// the employee.
var ErrUnknownEmployee = errors.New("unknown employee")

// StaticRoleResolver is a fixed employee-to-role map, used in tests and
// single-process deployments where roles come from configuration.
type StaticRoleResolver map[EmployeeID]string

func (s StaticRoleResolver) RoleOf(_ context.Context, id EmployeeID) (string, error) {
	role, ok := s[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEmployee, id)
	}
	return role, nil
}
