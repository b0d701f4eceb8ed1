package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"resume-normalizer/internal/api/handler"
	"resume-normalizer/internal/config"
	"resume-normalizer/internal/processor"
	"resume-normalizer/internal/storage"
	"resume-normalizer/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*server.Hertz, *storage.FileStore) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Tracing.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	files := storage.NewFileStore(config.NormalizerConfig{
		ReviewLogPath: filepath.Join(t.TempDir(), "unmatched_sections_log.json"),
	})
	proc, err := processor.NewResumeProcessor(processor.NewComponents(processor.WithLocalStore(files)), processor.Settings{})
	require.NoError(t, err)

	h := handler.NewResumeHandler(cfg, handler.Dependencies{ReviewLog: files}, proc)
	return NewServer(cfg, h), files
}

func jsonBody(t *testing.T, v interface{}) *ut.Body {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return &ut.Body{Body: bytes.NewReader(b), Len: len(b)}
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, nil)

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, resp.Header().Get(HeaderRequestID))
}

func TestStandardizeEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/resume/standardize",
		jsonBody(t, handler.StandardizeRequest{
			Text: "Jane Roe\njane@example.com\n+1 415 555 0123\nSkills: Go, SQL\nVolunteer at shelter",
		}),
		ut.Header{Key: "Content-Type", Value: "application/json"},
		ut.Header{Key: HeaderRequestID, Value: "req-1"},
	)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "req-1", resp.Header().Get(HeaderRequestID))
	var rec types.ResumeRecord
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &rec))
	assert.Equal(t, "jane@example.com", rec.ContactInfo.Email.Value)
	assert.Equal(t, []string{"Skills: Go, SQL\nVolunteer at shelter"}, rec.Standardized.Skills)
	assert.Equal(t, "api", rec.Source)
	assert.NotEmpty(t, rec.SubmissionUUID)
}

func TestStandardizeEndpoint_EmptyText(t *testing.T) {
	h, _ := newTestServer(t, nil)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/resume/standardize",
		jsonBody(t, handler.StandardizeRequest{Text: "   "}),
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReviewLogEndpoint(t *testing.T) {
	h, files := newTestServer(t, nil)
	require.NoError(t, files.WriteReviewLog(types.SectionList{
		{Name: "Volunteer Work", Content: "Food bank"},
		{Name: "Hobbies", Content: "Chess"},
	}))

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/review/unmatched", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.JSONEq(t, `{"Volunteer Work":"Food bank","Hobbies":"Chess"}`, body)
	assert.Less(t, strings.Index(body, "Volunteer Work"), strings.Index(body, "Hobbies"))
}

func TestStorageBackedEndpointsUnavailable(t *testing.T) {
	h, _ := newTestServer(t, nil)

	assert.Equal(t, http.StatusServiceUnavailable, ut.PerformRequest(h.Engine, "GET", "/api/v1/resumes", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, ut.PerformRequest(h.Engine, "GET", "/api/v1/resume/abc", nil).Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	h, _ := newTestServer(t, func(cfg *config.Config) { cfg.Server.APIKeys = []string{"secret"} })

	assert.Equal(t, http.StatusOK, ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ut.PerformRequest(h.Engine, "GET", "/api/v1/review/unmatched", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ut.PerformRequest(h.Engine, "GET", "/api/v1/review/unmatched", nil,
		ut.Header{Key: HeaderAPIKey, Value: "wrong"}).Code)
	assert.Equal(t, http.StatusOK, ut.PerformRequest(h.Engine, "GET", "/api/v1/review/unmatched", nil,
		ut.Header{Key: HeaderAPIKey, Value: "secret"}).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	h, _ := newTestServer(t, func(cfg *config.Config) { cfg.Server.RateLimitQPM = 2 })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_UnauthorizedRequestsDoNotConsumeTokens(t *testing.T) {
	h, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.APIKeys = []string{"secret"}
		cfg.Server.RateLimitQPM = 1
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, ut.PerformRequest(h.Engine, "GET", "/api/v1/review/unmatched", nil).Code)
	}
	authorized := ut.Header{Key: HeaderAPIKey, Value: "secret"}
	assert.Equal(t, http.StatusOK, ut.PerformRequest(h.Engine, "GET", "/api/v1/review/unmatched", nil, authorized).Code)
	assert.Equal(t, http.StatusTooManyRequests, ut.PerformRequest(h.Engine, "GET", "/api/v1/review/unmatched", nil, authorized).Code)
}
