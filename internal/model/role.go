package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role uint8

const (
	RoleCustomer Role = iota + 1
	RoleTourGuide
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleCustomer:  "customer",
	RoleTourGuide: "tour-guide",
	RoleAdmin:     "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func ParseRole(raw string) (Role, error) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for role, name := range roleNames {
		if name == needle {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", raw)
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", r)
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoleSet is a bitmask of roles. The zero value admits nobody.
type RoleSet uint8

func Roles(roles ...Role) RoleSet {
	var set RoleSet
	for _, role := range roles {
		if role.Valid() {
			set |= 1 << role
		}
	}
	return set
}

func (s RoleSet) Contains(role Role) bool {
	return role.Valid() && s&(1<<role) != 0
}

func (s RoleSet) String() string {
	names := make([]string, 0, len(roleNames))
	for _, role := range []Role{RoleCustomer, RoleTourGuide, RoleAdmin} {
		if s.Contains(role) {
			names = append(names, role.String())
		}
	}
	return strings.Join(names, ",")
}
