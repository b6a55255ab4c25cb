// internal/authz/permissions.go
package authz

import "laundry-delivery/pkg/constants"

// --- СПИСОК ДЕЙСТВИЙ, ОГРАНИЧЕННЫХ РОЛЬЮ ---

const (
	OrdersClaim   = "orders:claim"
	OrdersConfirm = "orders:confirm"
	OrdersAssign  = "orders:assign"
	OrdersCancel  = "orders:cancel"
	TrackingWatch = "tracking:watch:any"
)

// rolePermissions - какие роли могут выполнять действие независимо от участия в заказе.
var rolePermissions = map[string][]constants.Role{
	OrdersClaim:   {constants.RoleStaff, constants.RoleAdmin},
	OrdersConfirm: {constants.RoleStaff, constants.RoleAdmin},
	OrdersAssign:  {constants.RoleAdmin},
	OrdersCancel:  {constants.RoleStaff, constants.RoleAdmin},
	TrackingWatch: {constants.RoleStaff, constants.RoleAdmin},
}

// RoleCan - разрешено ли действие роли. Неизвестное действие запрещено.
func RoleCan(role constants.Role, permission string) bool {
	for _, r := range rolePermissions[permission] {
		if r == role {
			return true
		}
	}
	return false
}
