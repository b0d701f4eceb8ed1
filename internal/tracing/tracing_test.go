package tracing

import (
	"context"
	"testing"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "王*明", MaskPII("王小明"))
	assert.Equal(t, "ja************om", MaskPII("jane@example.com"))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "41********23", SafeAttributeValue("contact.phone", "415-555-0123", 100))
	assert.Equal(t, "ab...yz", SafeAttributeValue("section", "abcdefghijklmnopqrstuvwxyz", 7))
	assert.Equal(t, "short", SafeAttributeValue("section", "short", 7))
}

func TestContactAttributes(t *testing.T) {
	attrs := ContactAttributes(types.ContactInfo{Email: types.FoundField("jane@example.com")})

	got := map[string]interface{}{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, true, got["resume.contact.email.found"])
	assert.Equal(t, "ja************om", got["resume.contact.email"])
	assert.Equal(t, false, got["resume.contact.phone.found"])
	assert.NotContains(t, got, "resume.contact.phone")
}

func TestInitProvider_Disabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), config.TracingConfig{})

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitProvider(context.Background(), config.TracingConfig{Enabled: true})
	assert.Error(t, err)
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, SampleRatio(0))
	assert.Equal(t, 1.0, SampleRatio(3))
	assert.Equal(t, 0.25, SampleRatio(0.25))
}
