package rbac

// Project role names. Keep these stable; they are stored in project_members.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

func IsKnownRole(role string) bool { return role == RoleOwner || role == RoleMember }
