package auth

// Role hierarchy evaluator. Every function here is pure and total: a nil
// principal or an unrecognized role degrades to the lowest rank instead of
// failing, so callers can always rely on a boolean answer.

type Role string

const (
	RoleViewer     Role = "viewer"
	RoleUser       Role = "user"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// BroadAccessRole is the rank at which department scoping no longer applies.
const BroadAccessRole = RoleAdmin

var roleRanks = map[Role]int{
	RoleViewer:     0,
	RoleUser:       1,
	RoleManager:    2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// Rank returns the privilege rank of a role. Unknown roles map to the
// viewer rank.
func (r Role) Rank() int {
	if rank, ok := roleRanks[r]; ok {
		return rank
	}
	return roleRanks[RoleViewer]
}

// Valid reports whether the role is one of the recognized identifiers.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AllRoles lists the recognized roles from lowest to highest privilege.
func AllRoles() []Role {
	return []Role{RoleViewer, RoleUser, RoleManager, RoleAdmin, RoleSuperAdmin}
}

// HasRole reports whether the principal's role ranks at or above required.
func HasRole(p *Principal, required Role) bool {
	if p == nil {
		return false
	}
	return p.Role.Rank() >= required.Rank()
}

// HasAnyRole is a plain set-membership check, independent of rank.
func HasAnyRole(p *Principal, roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// CanAccessDepartment reports whether the principal may see records scoped
// to targetDepartment. Roles at or above BroadAccessRole see everything;
// everyone else is confined to their own department.
func CanAccessDepartment(p *Principal, targetDepartment string) bool {
	if p == nil {
		return false
	}
	if p.Role.Rank() >= BroadAccessRole.Rank() {
		return true
	}
	return p.Department == targetDepartment
}

// FieldSet is the set of user record fields a viewer may see.
type FieldSet map[string]bool

func (fs FieldSet) Has(field string) bool {
	return fs[field]
}

var baseUserFields = []string{"id", "name", "role", "department", "is_active"}

var sensitiveUserFields = []string{"email", "phone", "position", "created_at", "updated_at"}

// VisibleFields returns the user record fields a principal with the given
// role may see. Contact and employment fields are redacted unless the
// viewer owns the record or ranks manager or above.
func VisibleFields(role Role, isOwnRecord bool) FieldSet {
	fields := make(FieldSet, len(baseUserFields)+len(sensitiveUserFields))
	for _, f := range baseUserFields {
		fields[f] = true
	}
	if isOwnRecord || role.Rank() >= RoleManager.Rank() {
		for _, f := range sensitiveUserFields {
			fields[f] = true
		}
	}
	return fields
}
