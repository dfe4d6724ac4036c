package domain

import "strings"

// Role is a bit set of granted authorities.
type Role int64

const (
	RoleUser Role = 1 << iota
	RoleAdmin
)

// DefaultRoles is what every newly registered account receives.
const DefaultRoles = RoleUser

var roleNames = []struct {
	role Role
	name string
}{
	{RoleUser, "USER"},
	{RoleAdmin, "ADMIN"},
}

// Has reports whether every bit of want is granted.
func (r Role) Has(want Role) bool {
	return want != 0 && r&want == want
}

// Names lists the granted authorities in declaration order.
func (r Role) Names() []string {
	var names []string
	for _, rn := range roleNames {
		if r&rn.role != 0 {
			names = append(names, rn.name)
		}
	}
	return names
}

func (r Role) String() string {
	return strings.Join(r.Names(), ",")
}
