package uid_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shandysiswandi/stepup/internal/pkg/uid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerators(t *testing.T) {
	v7, err := uuid.Parse(uid.NewUUID().Generate())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), v7.Version())

	v4, err := uuid.Parse(uid.NewRandomUUID().Generate())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), v4.Version())
}

func TestIsUUID(t *testing.T) {
	assert.True(t, uid.IsUUID("0b4a6a43-7c3e-4a4f-9d8c-3f0c8e1b2a77"))
	assert.False(t, uid.IsUUID("0b4a6a437c3e4a4f9d8c3f0c8e1b2a77"))
	assert.False(t, uid.IsUUID("urn:uuid:0b4a6a43-7c3e-4a4f-9d8c-3f0c8e1b2a77"))
	assert.False(t, uid.IsUUID("not-a-uuid"))
	assert.False(t, uid.IsUUID(""))
}
