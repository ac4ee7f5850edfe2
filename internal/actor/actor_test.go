package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, IDFromContext(context.Background()))

	ctx := WithActor(context.Background(), Actor{ID: 9, Role: RoleProvider})
	a, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, RoleProvider, a.Role)

	id := IDFromContext(ctx)
	require.NotNil(t, id)
	assert.Equal(t, int64(9), *id)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleRequester.Valid())
	assert.True(t, RoleProvider.Valid())
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("").Valid())
}
