package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestActor_HasPermission(t *testing.T) {
	actor := &Actor{Permissions: []string{"policies:read", "usage:read"}}

	assert.True(t, actor.HasPermission("policies:read"))
	assert.False(t, actor.HasPermission("policies:write"))
	assert.False(t, (&Actor{}).HasPermission("anything"))
}

func TestActor_HasAllPermissions(t *testing.T) {
	actor := &Actor{Permissions: []string{"a", "b", "c"}}

	assert.True(t, actor.HasAllPermissions([]string{"a", "c"}))
	assert.True(t, actor.HasAllPermissions(nil))
	assert.False(t, actor.HasAllPermissions([]string{"a", "d"}))
}

func TestActor_MissingPermissions(t *testing.T) {
	actor := &Actor{Permissions: []string{"a"}}

	assert.Equal(t, []string{"b", "c"}, actor.MissingPermissions([]string{"a", "b", "c"}))
	assert.Nil(t, actor.MissingPermissions([]string{"a"}))
}

func TestActor_CanManageGovernance(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{
			name:  "admin bypasses permission check",
			actor: Actor{AccessLevel: AccessLevelAdmin},
			want:  true,
		},
		{
			name:  "writer with governance:write",
			actor: Actor{AccessLevel: AccessLevelWrite, Permissions: []string{"governance:write"}},
			want:  true,
		},
		{
			name:  "writer without permission",
			actor: Actor{AccessLevel: AccessLevelWrite},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.CanManageGovernance())
		})
	}
}

func TestActor_ScopeKey(t *testing.T) {
	id := uuid.New()

	teamActor := &Actor{ID: id, TeamID: "platform"}
	assert.Equal(t, "team:platform", teamActor.ScopeKey())

	soloActor := &Actor{ID: id}
	assert.Equal(t, "user:"+id.String(), soloActor.ScopeKey())
}
