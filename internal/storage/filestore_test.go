package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(config.NormalizerConfig{
		SchemaPath:    filepath.Join(dir, "resume_schema.json"),
		ReviewLogPath: filepath.Join(dir, "unmatched_sections_log.json"),
		OutputDir:     filepath.Join(dir, "out"),
	}), dir
}

func TestLoadSchema_MissingFileFallsBack(t *testing.T) {
	fs, _ := newTestFileStore(t)

	schema := fs.LoadSchema()

	assert.True(t, schema.Fallback)
	assert.JSONEq(t, EmptySchemaTemplate, string(schema.Raw))
	assert.Empty(t, schema.Required)
}

func TestLoadSchema_MalformedFallsBack(t *testing.T) {
	fs, dir := newTestFileStore(t)
	for _, content := range []string{"{not json", `["Header"]`} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "resume_schema.json"), []byte(content), 0o644))

		schema := fs.LoadSchema()

		assert.True(t, schema.Fallback, content)
		assert.JSONEq(t, EmptySchemaTemplate, string(schema.Raw))
	}
}

func TestSaveAndLoadSchema(t *testing.T) {
	fs, dir := newTestFileStore(t)
	raw, err := BuildSchema([]types.CanonicalSection{types.SectionHeader, types.SectionSkills}, []string{"Header", "Skills"})
	require.NoError(t, err)

	require.NoError(t, fs.SaveSchema(raw))
	schema := fs.LoadSchema()

	assert.False(t, schema.Fallback)
	assert.Equal(t, []string{"Header", "Skills"}, schema.Required)
	data, err := os.ReadFile(filepath.Join(dir, "resume_schema.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"properties\"")

	assert.Error(t, fs.SaveSchema([]byte("{")))
}

func TestWriteReviewLog_Overwrites(t *testing.T) {
	fs, dir := newTestFileStore(t)

	require.NoError(t, fs.WriteReviewLog(types.SectionList{{Name: "Volunteer Work", Content: "Food bank"}, {Name: "Hobbies", Content: "Chess"}}))
	require.NoError(t, fs.WriteReviewLog(types.SectionList{{Name: "Publications", Content: "Paper A"}}))

	got, err := fs.ReadReviewLog()
	require.NoError(t, err)
	assert.Equal(t, types.SectionList{{Name: "Publications", Content: "Paper A"}}, got)

	require.NoError(t, fs.WriteReviewLog(nil))
	data, err := os.ReadFile(filepath.Join(dir, "unmatched_sections_log.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	got, err = fs.ReadReviewLog()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteReviewLog_KeepsOrderAndDuplicates(t *testing.T) {
	fs, dir := newTestFileStore(t)

	require.NoError(t, fs.WriteReviewLog(types.SectionList{
		{Name: "Volunteer Work", Content: "Food bank"},
		{Name: "Hobbies", Content: "Chess"},
		{Name: "Volunteer Work", Content: "Animal shelter"},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "unmatched_sections_log.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"Volunteer Work\": \"Food bank\\nAnimal shelter\",\n    \"Hobbies\": \"Chess\"\n}", string(data))

	got, err := fs.ReadReviewLog()
	require.NoError(t, err)
	assert.Equal(t, types.SectionList{
		{Name: "Volunteer Work", Content: "Food bank\nAnimal shelter"},
		{Name: "Hobbies", Content: "Chess"},
	}, got)
}

func TestWriteFileAtomic_ReadableByOthers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.json")

	require.NoError(t, writeFileAtomic(path, []byte("{}")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestReadReviewLog_Missing(t *testing.T) {
	fs, _ := newTestFileStore(t)

	got, err := fs.ReadReviewLog()

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteRecord(t *testing.T) {
	fs, dir := newTestFileStore(t)
	rec := &types.ResumeRecord{
		SubmissionUUID: "0190b7a4-0000-7000-8000-000000000001",
		TextMD5:        "abc",
		ContactInfo:    types.ContactInfo{Email: types.FoundField("jane@example.com")},
		ProcessedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	rec.Standardized.Append(types.SectionSkills, "Go, SQL")

	path, err := fs.WriteRecord(rec)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", rec.SubmissionUUID+".json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded types.ResumeRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"Go, SQL"}, decoded.Standardized.Skills)
	assert.Equal(t, "jane@example.com", decoded.ContactInfo.Email.Value)
	assert.False(t, decoded.ContactInfo.Phone.Found)

	_, err = fs.WriteRecord(&types.ResumeRecord{})
	assert.Error(t, err)
}
