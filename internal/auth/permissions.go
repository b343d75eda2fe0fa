package auth

import "sort"

// Action is an operation on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// Protected resources.
const (
	ResourceUsers        = "users"
	ResourceParkings     = "parkings"
	ResourceReservations = "reservations"
	ResourcePayments     = "payments"
	ResourceReports      = "reports"
)

// Rule grants an action on a resource to a fixed set of roles.
type Rule struct {
	Resource string `json:"resource"`
	Action   Action `json:"action"`
	Roles    []Role `json:"roles"`
}

// rules is the process-wide authorization policy, fixed at compile time.
// Absence of an entry means denial for every role; there is no implicit
// allow and no dynamic mutation, so concurrent reads need no locking.
var rules = map[string]map[Action][]Role{
	ResourceUsers: {
		ActionCreate: {RoleAdmin},
		ActionRead:   {RoleAdmin, RoleManager},
		ActionUpdate: {RoleAdmin, RoleManager},
		ActionDelete: {RoleAdmin},
	},
	ResourceParkings: {
		ActionCreate: {RoleAdmin, RoleManager},
		ActionRead:   {RoleAdmin, RoleManager, RoleValet, RoleEmployee, RoleClient},
		ActionUpdate: {RoleAdmin, RoleManager},
		ActionDelete: {RoleAdmin},
	},
	ResourceReservations: {
		ActionCreate: {RoleAdmin, RoleManager, RoleEmployee, RoleClient},
		ActionRead:   {RoleAdmin, RoleManager, RoleValet, RoleEmployee, RoleClient},
		ActionUpdate: {RoleAdmin, RoleManager, RoleValet, RoleEmployee},
		ActionDelete: {RoleAdmin, RoleManager},
	},
	ResourcePayments: {
		ActionCreate: {RoleAdmin, RoleManager, RoleEmployee, RoleClient},
		ActionRead:   {RoleAdmin, RoleManager, RoleEmployee, RoleClient},
		ActionUpdate: {RoleAdmin, RoleManager},
		ActionDelete: {RoleAdmin},
	},
	ResourceReports: {
		ActionRead:   {RoleAdmin, RoleManager},
		ActionExport: {RoleAdmin},
	},
}

// HasPermission reports whether role may perform action on resource.
// Unknown (resource, action) pairs are denied for every role.
func HasPermission(role Role, resource string, action Action) bool {
	actions, ok := rules[resource]
	if !ok {
		return false
	}
	allowed, ok := actions[action]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// RequirePermission is HasPermission with fail-fast semantics: it returns
// the coded forbidden error on denial so callers can short-circuit.
func RequirePermission(role Role, resource string, action Action) error {
	if !HasPermission(role, resource, action) {
		return ErrForbidden
	}
	return nil
}

// PermissionsForRole lists every rule whose allowed set contains role,
// ordered by resource then action. Used for introspection (e.g. /v1/auth/me).
func PermissionsForRole(role Role) []Rule {
	var out []Rule
	for resource, actions := range rules {
		for action, allowed := range actions {
			for _, r := range allowed {
				if r == role {
					out = append(out, Rule{Resource: resource, Action: action, Roles: append([]Role(nil), allowed...)})
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}
