package auth

// Principal is a verified caller: the freshly loaded user record together
// with the role snapshot from the presented token and the resolved effective
// permission set.
type Principal struct {
	User        PublicUser
	Roles       []string
	Permissions map[string]struct{}
}

// NewPrincipal builds a principal from a user, a role snapshot and resolved
// permission names.
func NewPrincipal(user PublicUser, roles []string, perms []string) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Principal{User: user, Roles: roles, Permissions: set}
}

// HasPermission reports whether the principal holds the named permission.
func (p Principal) HasPermission(name string) bool {
	_, ok := p.Permissions[name]
	return ok
}

// HasAny reports whether the principal holds at least one of the required
// permissions. An empty requirement is vacuously satisfied.
func (p Principal) HasAny(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	for _, name := range required {
		if p.HasPermission(name) {
			return true
		}
	}
	return false
}

// HasAll reports whether the principal holds every required permission.
func (p Principal) HasAll(required ...string) bool {
	for _, name := range required {
		if !p.HasPermission(name) {
			return false
		}
	}
	return true
}

// Missing returns the required permissions the principal does not hold, in
// the order they were required.
func (p Principal) Missing(required ...string) []string {
	var missing []string
	for _, name := range required {
		if !p.HasPermission(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
