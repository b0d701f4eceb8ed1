package processor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/constants"
	"resume-normalizer/internal/parser"
	"resume-normalizer/internal/storage"
	"resume-normalizer/internal/storage/models"
	"resume-normalizer/internal/types"
	"resume-normalizer/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleResume = "John Doe\njohn@example.com\nExperience\nSoftware Engineer at Acme\nEducation\nBSc Computer Science"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type MockRecordCache struct{ mock.Mock }

func (m *MockRecordCache) GetRecord(ctx context.Context, cacheKey string) (*types.ResumeRecord, error) {
	args := m.Called(ctx, cacheKey)
	rec, _ := args.Get(0).(*types.ResumeRecord)
	return rec, args.Error(1)
}

func (m *MockRecordCache) PutRecord(ctx context.Context, cacheKey string, rec *types.ResumeRecord) error {
	return m.Called(ctx, cacheKey, rec).Error(0)
}

type MockRecordArchive struct{ mock.Mock }

func (m *MockRecordArchive) UploadParsedText(ctx context.Context, submissionUUID, text string) (string, error) {
	args := m.Called(ctx, submissionUUID, text)
	return args.String(0), args.Error(1)
}

func (m *MockRecordArchive) UploadRecord(ctx context.Context, rec *types.ResumeRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

type MockRecordRepository struct{ mock.Mock }

func (m *MockRecordRepository) SaveRecordWithOutbox(ctx context.Context, sub *models.ResumeSubmission, msgs ...*models.OutboxMessage) error {
	return m.Called(ctx, sub, msgs).Error(0)
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, []byte, string, map[string]interface{}) (string, map[string]interface{}, error) {
	return s.text, map[string]interface{}{"extractor": "stub"}, s.err
}

func (s stubExtractor) Supports(string) bool { return true }

func newTestProcessor(t *testing.T, comp Components, opts ...SettingOpt) (*ResumeProcessor, *storage.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	files := storage.NewFileStore(config.NormalizerConfig{
		SchemaPath:    filepath.Join(dir, "resume_schema.json"),
		ReviewLogPath: filepath.Join(dir, "unmatched_sections_log.json"),
		OutputDir:     filepath.Join(dir, "out"),
	})
	comp.Files = files
	opts = append([]SettingOpt{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() (string, error) { return "sub-1", nil }),
	}, opts...)
	p, err := NewResumeProcessor(comp, Settings{}, opts...)
	require.NoError(t, err)
	return p, files, dir
}

func TestProcessText_Sample(t *testing.T) {
	p, files, dir := newTestProcessor(t, Components{})

	rec, err := p.ProcessText(context.Background(), ProcessRequest{Text: sampleResume, Source: "cv.txt"})

	require.NoError(t, err)
	assert.Equal(t, "sub-1", rec.SubmissionUUID)
	assert.Equal(t, fixedNow, rec.ProcessedAt)
	assert.Equal(t, "john@example.com", rec.ContactInfo.Email.Value)
	assert.False(t, rec.ContactInfo.Phone.Found)
	assert.Equal(t, []string{"Experience\nSoftware Engineer at Acme"}, rec.Standardized.Experience)
	assert.Equal(t, []string{"Education\nBSc Computer Science"}, rec.Standardized.Education)
	assert.Equal(t, []types.RawSection{{Name: "General", Content: "John Doe\njohn@example.com"}}, rec.Unmatched)
	assert.Equal(t, []string{"Missing critical resume sections: Header, Summary"}, rec.Warnings)

	reviewLog, err := files.ReadReviewLog()
	require.NoError(t, err)
	assert.Equal(t, types.SectionList{{Name: "General", Content: "John Doe\njohn@example.com"}}, reviewLog)

	_, err = os.Stat(filepath.Join(dir, "out", "sub-1.json"))
	assert.NoError(t, err)
}

func TestProcessText_ReviewLogOverwrittenEachRun(t *testing.T) {
	p, files, _ := newTestProcessor(t, Components{})
	ctx := context.Background()

	_, err := p.ProcessText(ctx, ProcessRequest{Text: sampleResume})
	require.NoError(t, err)
	_, err = p.ProcessText(ctx, ProcessRequest{SubmissionUUID: "sub-2", Text: "Experience\nBuilt things at Initech"})
	require.NoError(t, err)

	reviewLog, err := files.ReadReviewLog()
	require.NoError(t, err)
	assert.Empty(t, reviewLog)
}

func TestProcessText_SchemaRequiredAddsWarnings(t *testing.T) {
	p, files, _ := newTestProcessor(t, Components{}, WithRequiredSections("Projects", "Hobbies"))
	raw, err := storage.BuildSchema(types.AllCanonicalSections, []string{"Skills"})
	require.NoError(t, err)
	require.NoError(t, files.SaveSchema(raw))

	rec, err := p.ProcessText(context.Background(), ProcessRequest{Text: sampleResume})

	require.NoError(t, err)
	assert.Equal(t, []string{"Missing critical resume sections: Header, Summary, Projects, Skills"}, rec.Warnings)
}

func TestProcessText_CleansText(t *testing.T) {
	p, _, _ := newTestProcessor(t, Components{}, WithCleanText(true))

	rec, err := p.ProcessText(context.Background(), ProcessRequest{Text: "John Doe\r\n\r\n\r\nPage 1 of 2\r\nSkills: Go"})

	require.NoError(t, err)
	assert.Equal(t, []types.RawSection{
		{Name: "General", Content: "John Doe"},
		{Name: "Skills", Content: "Skills: Go"},
	}, rec.Sections)
}

func TestProcessText_EmptyText(t *testing.T) {
	p, _, _ := newTestProcessor(t, Components{})

	_, err := p.ProcessText(context.Background(), ProcessRequest{Text: "  \n "})

	assert.True(t, errors.Is(err, ErrEmptyText))
}

func TestProcessText_CacheHitRecomputesWarnings(t *testing.T) {
	cache := new(MockRecordCache)
	cached := &types.ResumeRecord{
		SubmissionUUID: "old",
		Sections:       []types.RawSection{{Name: "Skills", Content: "Skills: Go"}},
		Warnings:       []string{"stale"},
	}
	cached.Standardized.Append(types.SectionSkills, "Skills: Go")
	cache.On("GetRecord", mock.Anything, mock.AnythingOfType("string")).Return(cached, nil)
	cache.On("PutRecord", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	p, _, _ := newTestProcessor(t, Components{Cache: cache})

	rec, err := p.ProcessText(context.Background(), ProcessRequest{Text: "anything at all"})

	require.NoError(t, err)
	assert.Equal(t, "sub-1", rec.SubmissionUUID)
	assert.Equal(t, []string{"Skills: Go"}, rec.Standardized.Skills)
	assert.Equal(t, []string{"Missing critical resume sections: Header, Summary, Experience, Education"}, rec.Warnings)
	cache.AssertExpectations(t)
}

func TestProcessText_CacheMissStores(t *testing.T) {
	cache := new(MockRecordCache)
	cache.On("GetRecord", mock.Anything, mock.Anything).Return(nil, storage.ErrNotFound)
	cache.On("PutRecord", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, constants.NormalizerVersion+":") && strings.HasSuffix(key, utils.CalculateTextMD5(sampleResume))
	}), mock.MatchedBy(func(r *types.ResumeRecord) bool {
		return r.SubmissionUUID == "sub-1" && r.TextMD5 != ""
	})).Return(errors.New("redis down"))
	p, _, _ := newTestProcessor(t, Components{Cache: cache})

	_, err := p.ProcessText(context.Background(), ProcessRequest{Text: sampleResume})

	require.NoError(t, err, "cache failures are not fatal")
	cache.AssertExpectations(t)
}

func TestProcessText_PersistsWithOutbox(t *testing.T) {
	archive := new(MockRecordArchive)
	archive.On("UploadParsedText", mock.Anything, "sub-1", sampleResume).Return("k1", nil)
	archive.On("UploadRecord", mock.Anything, mock.Anything).Return("", errors.New("minio down"))
	repo := new(MockRecordRepository)
	repo.On("SaveRecordWithOutbox", mock.Anything,
		mock.MatchedBy(func(sub *models.ResumeSubmission) bool {
			return sub.SubmissionUUID == "sub-1" && sub.ProcessingStatus == constants.StatusNeedsReview && sub.UnmatchedCount == 1
		}),
		mock.MatchedBy(func(msgs []*models.OutboxMessage) bool {
			if len(msgs) != 1 || msgs[0].TargetExchange != "resume.events" || msgs[0].TargetRoutingKey != "resume.standardized" {
				return false
			}
			var ev storage.ResumeStandardizedEvent
			if err := json.Unmarshal([]byte(msgs[0].Payload), &ev); err != nil {
				return false
			}
			return ev.UnmatchedCount == 1 && assert.ObjectsAreEqual([]string{"Experience", "Education"}, ev.CanonicalSections)
		}),
	).Return(nil)

	p, _, _ := newTestProcessor(t, Components{Archive: archive, Repository: repo},
		WithEventRoute("resume.events", "resume.standardized"))

	_, err := p.ProcessText(context.Background(), ProcessRequest{Text: sampleResume})

	require.NoError(t, err)
	archive.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestProcessText_DatabaseErrorIsReturned(t *testing.T) {
	repo := new(MockRecordRepository)
	repo.On("SaveRecordWithOutbox", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("deadlock"))
	p, _, _ := newTestProcessor(t, Components{Repository: repo})

	_, err := p.ProcessText(context.Background(), ProcessRequest{Text: sampleResume})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatabaseFailed))
	var pe *ResumeProcessError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "database", pe.Op)
	assert.Equal(t, "sub-1", pe.SubmissionUUID)
}

func TestProcessDocument(t *testing.T) {
	p, _, _ := newTestProcessor(t, Components{Extractor: stubExtractor{text: sampleResume}})

	rec, err := p.ProcessDocument(context.Background(), []byte("%PDF"), "cv.pdf", "sub-9")

	require.NoError(t, err)
	assert.Equal(t, "sub-9", rec.SubmissionUUID)
	assert.Equal(t, "cv.pdf", rec.Source)
}

func TestProcessDocument_ExtractError(t *testing.T) {
	p, _, _ := newTestProcessor(t, Components{Extractor: stubExtractor{err: errors.New("corrupt")}})

	_, err := p.ProcessDocument(context.Background(), []byte("x"), "cv.pdf", "sub-9")

	assert.True(t, errors.Is(err, ErrExtractTextFailed))
	assert.Contains(t, err.Error(), "corrupt")

	noExtractor, _, _ := newTestProcessor(t, Components{})
	_, err = noExtractor.ProcessDocument(context.Background(), []byte("x"), "cv.pdf", "sub-9")
	assert.True(t, errors.Is(err, ErrExtractTextFailed))
}

func TestStandardizeSections(t *testing.T) {
	p, files, _ := newTestProcessor(t, Components{})

	res, err := p.StandardizeSections([]types.RawSection{
		{Name: "Work History", Content: "Acme"},
		{Name: "Volunteer Work", Content: "Food bank"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Acme"}, res.Sections.Experience)
	reviewLog, err := files.ReadReviewLog()
	require.NoError(t, err)
	assert.Equal(t, types.SectionList{{Name: "Volunteer Work", Content: "Food bank"}}, reviewLog)
}

func TestStandardizeSections_DuplicateUnmatchedNamesKept(t *testing.T) {
	p, files, _ := newTestProcessor(t, Components{})

	res, err := p.StandardizeSections([]types.RawSection{
		{Name: "Volunteer Work", Content: "Food bank"},
		{Name: "Volunteer Work", Content: "Animal shelter"},
	})

	require.NoError(t, err)
	assert.Len(t, res.Unmatched, 2)
	reviewLog, err := files.ReadReviewLog()
	require.NoError(t, err)
	assert.Equal(t, types.SectionList{{Name: "Volunteer Work", Content: "Food bank\nAnimal shelter"}}, reviewLog)
}

func TestCacheKey_TracksRules(t *testing.T) {
	base, _, _ := newTestProcessor(t, Components{})
	same, _, _ := newTestProcessor(t, Components{})
	stricter, _, _ := newTestProcessor(t, Components{Segmenter: parser.NewSectionSegmenter(parser.WithMinLineLength(5))})
	std, err := parser.NewSectionStandardizer([]parser.SectionRule{{Canonical: types.SectionSkills, Aliases: []string{"Tools"}}})
	require.NoError(t, err)
	otherRules, _, _ := newTestProcessor(t, Components{Standardizer: std})

	key := base.cacheKey("abc")
	assert.True(t, strings.HasPrefix(key, constants.NormalizerVersion+":"))
	assert.True(t, strings.HasSuffix(key, ":abc"))
	assert.Equal(t, key, same.cacheKey("abc"))
	assert.NotEqual(t, key, stricter.cacheKey("abc"))
	assert.NotEqual(t, key, otherRules.cacheKey("abc"))
}
