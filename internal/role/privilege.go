package role

// Permission is a capability granted to a role.
type Permission string

const (
	ReadSelf       Permission = "read:self"
	ReadAll        Permission = "read:all"
	UserCreate     Permission = "user:create"
	UserEdit       Permission = "user:edit"
	UserEditOwn    Permission = "user:edit:own"
	RoleEdit       Permission = "roles:edit"
	TaskView       Permission = "task:view"
	TaskEditStatus Permission = "task:edit:status"
	TaskEdit       Permission = "task:edit"
)

var allPermissions = []Permission{
	ReadSelf, ReadAll, UserCreate, UserEdit, UserEditOwn, RoleEdit, TaskView, TaskEditStatus, TaskEdit,
}

var rolePermissions = map[Role][]Permission{
	Simple:      {ReadSelf, TaskView},
	Facilitator: {ReadSelf, TaskView, TaskEditStatus, UserEditOwn},
	Manager:     {ReadSelf, TaskView, UserCreate, UserEditOwn},
	HR:          {ReadSelf, ReadAll, TaskView, TaskEditStatus, TaskEdit, UserCreate, UserEdit, RoleEdit},
	Admin:       allPermissions,
}

// rank orders roles by privilege. Display order (All) is unrelated.
var rank = map[Role]int{
	Simple:      1,
	Facilitator: 2,
	Manager:     3,
	HR:          4,
	Admin:       5,
}

// Permissions returns the permissions granted to r. Unknown roles get the
// permissions of Default.
func Permissions(r Role) []Permission {
	perms := rolePermissions[ToRole(string(r))]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Has reports whether r holds every permission in needed.
func Has(r Role, needed ...Permission) bool {
	granted := make(map[Permission]struct{})
	for _, p := range rolePermissions[ToRole(string(r))] {
		granted[p] = struct{}{}
	}
	for _, p := range needed {
		if _, ok := granted[p]; !ok {
			return false
		}
	}
	return true
}

// Rank returns the privilege rank of r, or 0 for roles outside the enumeration.
func Rank(r Role) int {
	return rank[r]
}

// CanAssign reports whether an editor holding editor may set a user's role to
// target. Admins may assign anything; everyone else is capped at their own rank.
func CanAssign(editor, target Role) bool {
	if editor == Admin {
		return true
	}
	return Rank(editor) > 0 && Rank(editor) >= Rank(target)
}

// Visible returns the roles whose holders editor may list in the roster.
func Visible(editor Role) []Role {
	switch editor {
	case Admin:
		return []Role{Simple, Facilitator, Manager, HR, Admin}
	case HR:
		return []Role{Simple, Facilitator, Manager, HR}
	}
	return nil
}
