package constants

// Role is the role carried by an authenticated actor.
type Role string

const (
	RoleDonor       Role = "donor"
	RoleNGO         Role = "ngo"
	RoleVendor      Role = "vendor"
	RoleBeneficiary Role = "beneficiary"
	RoleAdmin       Role = "admin"
)

var allRoles = []Role{RoleDonor, RoleNGO, RoleVendor, RoleBeneficiary, RoleAdmin}

// ParseRole returns the role for s and whether it is known.
func ParseRole(s string) (Role, bool) {
	for _, r := range allRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// CanAdminister reports whether the role may create, release or reject expenditures.
func (r Role) CanAdminister() bool {
	return r == RoleNGO || r == RoleAdmin
}
