package models

import "fmt"

// Role is the access level of a user.
type Role string

const (
	RoleConsultant Role = "consultant"
	RoleChampion   Role = "champion"
	RoleGovernance Role = "governance"
	RoleAdmin      Role = "admin"
)

// Roles lists every role in ascending order of privilege.
var Roles = []Role{RoleConsultant, RoleChampion, RoleGovernance, RoleAdmin}

// ParseRole returns the Role named s. An empty s yields RoleConsultant,
// the column default.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleConsultant, nil
	}
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	return string(r)
}
