package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionList_MarshalKeepsOrderAndMergesDuplicates(t *testing.T) {
	list := SectionList{
		{Name: "Volunteer Work", Content: "Food bank"},
		{Name: "Hobbies", Content: "Chess"},
		{Name: "Volunteer Work", Content: "Animal shelter"},
	}

	data, err := json.Marshal(list)

	require.NoError(t, err)
	assert.Equal(t, `{"Volunteer Work":"Food bank\nAnimal shelter","Hobbies":"Chess"}`, string(data))
	assert.Len(t, list, 3, "Merged 不修改原列表")

	empty, err := json.Marshal(SectionList(nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func TestParseSections(t *testing.T) {
	got, err := ParseSections([]byte(`{"Zeta":"z","Alpha":"a","Zeta":"again"}`))
	require.NoError(t, err)
	assert.Equal(t, SectionList{{Name: "Zeta", Content: "z"}, {Name: "Alpha", Content: "a"}, {Name: "Zeta", Content: "again"}}, got)

	got, err = ParseSections([]byte(`[{"name":"Skills","content":"Go"}]`))
	require.NoError(t, err)
	assert.Equal(t, SectionList{{Name: "Skills", Content: "Go"}}, got)

	for _, bad := range []string{`"text"`, `[1]`, `{`} {
		_, err := ParseSections([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestSectionList_RoundTripThroughStruct(t *testing.T) {
	var out struct {
		Unmatched SectionList `json:"unmatched"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"unmatched":{"B":"2","A":"1"}}`), &out))

	assert.Equal(t, SectionList{{Name: "B", Content: "2"}, {Name: "A", Content: "1"}}, out.Unmatched)
}
