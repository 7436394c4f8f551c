package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Tour-Guide ")
	require.NoError(t, err)
	assert.Equal(t, RoleTourGuide, role)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(User{ID: "1", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role":"admin"`)
	assert.NotContains(t, string(data), "password")

	var decoded struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"customer"}`), &decoded))
	assert.Equal(t, RoleCustomer, decoded.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"root"}`), &decoded))
}

func TestRoleSet(t *testing.T) {
	set := Roles(RoleAdmin, RoleTourGuide, Role(0), Role(200))

	assert.True(t, set.Contains(RoleAdmin))
	assert.True(t, set.Contains(RoleTourGuide))
	assert.False(t, set.Contains(RoleCustomer))
	assert.False(t, set.Contains(Role(0)))
	assert.Equal(t, "tour-guide,admin", set.String())

	var none RoleSet
	assert.False(t, none.Contains(RoleAdmin))
}
