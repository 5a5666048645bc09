package auth

// Role names assignable to users. Authorization is a plain name check
// against the token's role list.
const (
	RoleCreateUser     = "user.create"
	RoleUpdateUserRole = "user.role.update"
	RoleDeleteUser     = "user.delete"
	RoleChangePassword = "user.password.change"
	RoleGetUsers       = "user.info.get"

	RoleCreateDevice = "device.create"
	RoleUpdateDevice = "device.update"
	RoleDeleteDevice = "device.delete"
	RoleListDevices  = "device.list"

	RoleCreateProject = "project.create"
	RoleGetProjects   = "project.get"
	RoleUpdateProject = "project.update"
)

// Roles lists every known role, in the order they are granted to the
// bootstrap admin.
var Roles = []string{
	RoleCreateUser,
	RoleUpdateUserRole,
	RoleDeleteUser,
	RoleChangePassword,
	RoleGetUsers,

	RoleCreateDevice,
	RoleUpdateDevice,
	RoleDeleteDevice,
	RoleListDevices,

	RoleCreateProject,
	RoleGetProjects,
	RoleUpdateProject,
}
