package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", CalculateMD5(nil))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", CalculateTextMD5("hello"))
}

func TestNewSubmissionUUID(t *testing.T) {
	a, err := NewSubmissionUUID()
	require.NoError(t, err)
	b, err := NewSubmissionUUID()
	require.NoError(t, err)

	assert.True(t, IsValidUUID(a))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "7", a[14:15], "version nibble")
	assert.False(t, IsValidUUID("not-a-uuid"))
}

func TestFileExtAndTimePtr(t *testing.T) {
	assert.Equal(t, ".pdf", FileExt("Resume.Final.PDF"))
	assert.Equal(t, "", FileExt("README"))
	assert.Nil(t, TimePtr(time.Time{}))
	assert.NotNil(t, TimePtr(time.Now()))
}
