package model

import "fmt"

// Role is the job function carried in a user's access token
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleSales       Role = "sales"
	RoleProcurement Role = "procurement"
	RoleWarehouse   Role = "warehouse"
	RoleDriver      Role = "driver"
	RoleSupplier    Role = "supplier"
	RoleDelivery    Role = "delivery"
)

// AllRoles lists every role known to the permission table
var AllRoles = []Role{
	RoleAdmin,
	RoleSales,
	RoleProcurement,
	RoleWarehouse,
	RoleDriver,
	RoleSupplier,
	RoleDelivery,
}

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}
