package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-normalizer/internal/types"
)

func TestExtractContactInfo_AllFields(t *testing.T) {
	text := "Jane Roe\njane.roe+jobs@mail.example.org | (555) 123-4567\nhttps://www.linkedin.com/in/jane-roe"

	info := ExtractContactInfo(text)

	assert.Equal(t, types.FoundField("jane.roe+jobs@mail.example.org"), info.Email)
	assert.Equal(t, types.FoundField("(555) 123-4567"), info.Phone)
	assert.Equal(t, types.FoundField("https://www.linkedin.com/in/jane-roe"), info.LinkedIn)
}

func TestExtractContactInfo_FirstMatchWins(t *testing.T) {
	info := ExtractContactInfo("a@x.com then b@y.com; 555.111.2222 and 555-333-4444")

	assert.Equal(t, "a@x.com", info.Email.Value)
	assert.Equal(t, "555.111.2222", info.Phone.Value)
}

func TestExtractContactInfo_MissingEmailKeepsOthers(t *testing.T) {
	info := ExtractContactInfo("Call 5551234567\nlinkedin.com/in/jroe")

	assert.False(t, info.Email.Found)
	assert.True(t, info.Phone.Found)
	assert.Equal(t, "5551234567", info.Phone.Value)
	assert.Equal(t, "linkedin.com/in/jroe", info.LinkedIn.Value)
}

func TestExtractContactInfo_SampleResume(t *testing.T) {
	info := ExtractContactInfo(sampleResume)

	assert.Equal(t, types.FoundField("john@example.com"), info.Email)
	assert.False(t, info.Phone.Found)
	assert.False(t, info.LinkedIn.Found)
}

func TestExtractContactInfo_LinkedInHostCaseInsensitive(t *testing.T) {
	info := ExtractContactInfo("http://LinkedIn.com/in/Jane_Roe")

	assert.Equal(t, "http://LinkedIn.com/in/Jane_Roe", info.LinkedIn.Value)
}

func TestContactInfo_JSONNullForMissing(t *testing.T) {
	data, err := json.Marshal(ExtractContactInfo("no contact here"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":null,"phone":null,"linkedin":null}`, string(data))

	var back types.ContactInfo
	require.NoError(t, json.Unmarshal([]byte(`{"email":"","phone":null,"linkedin":"x"}`), &back))
	assert.True(t, back.Email.Found, "空字符串与未找到不同")
	assert.False(t, back.Phone.Found)
	assert.Equal(t, types.FoundField("x"), back.LinkedIn)
}
