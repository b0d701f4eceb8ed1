package storage

import (
	"testing"
	"time"

	"resume-normalizer/internal/constants"
	"resume-normalizer/internal/storage/models"
	"resume-normalizer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSubmissionRoundTrip(t *testing.T) {
	rec := &types.ResumeRecord{
		SubmissionUUID: "0190b7a4-0000-7000-8000-000000000002",
		Source:         "cv.pdf",
		TextMD5:        "d41d8cd98f00b204e9800998ecf8427e",
		ContactInfo: types.ContactInfo{
			Email: types.FoundField("jane@example.com"),
			Phone: types.FoundField("(415) 555-0123"),
		},
		Sections:    []types.RawSection{{Name: "Experience", Content: "Acme"}, {Name: "Volunteer Work", Content: "Food bank"}},
		Unmatched:   []types.RawSection{{Name: "Volunteer Work", Content: "Food bank"}},
		Warnings:    []string{"Missing critical resume sections: Header, Summary, Education"},
		ProcessedAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
	rec.Standardized.Append(types.SectionExperience, "Acme")

	sub, err := RecordToSubmission(rec, constants.StatusNeedsReview)
	require.NoError(t, err)

	assert.Equal(t, "+14155550123", sub.PrimaryPhone)
	assert.Equal(t, "jane@example.com", sub.PrimaryEmail)
	assert.Empty(t, sub.LinkedInURL)
	assert.Equal(t, 1, sub.UnmatchedCount)
	assert.Equal(t, constants.StatusNeedsReview, sub.ProcessingStatus)
	require.NotNil(t, sub.ProcessedAt)

	back, err := SubmissionToRecord(sub)
	require.NoError(t, err)
	assert.Equal(t, rec.Sections, back.Sections)
	assert.Equal(t, rec.Unmatched, back.Unmatched)
	assert.Equal(t, rec.Warnings, back.Warnings)
	assert.Equal(t, rec.Standardized, back.Standardized)
	assert.Equal(t, rec.ContactInfo, back.ContactInfo)
	assert.True(t, rec.ProcessedAt.Equal(back.ProcessedAt))
}

func TestSubmissionToRecord_PendingRow(t *testing.T) {
	back, err := SubmissionToRecord(&models.ResumeSubmission{SubmissionUUID: "u1", OriginalFilename: "cv.docx"})

	require.NoError(t, err)
	assert.Equal(t, "u1", back.SubmissionUUID)
	assert.Empty(t, back.Sections)
	assert.False(t, back.ContactInfo.Email.Found)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+14155550123", NormalizePhone("415.555.0123", "US"))
	assert.Equal(t, "12", NormalizePhone("12", "US"))
	assert.Equal(t, "", NormalizePhone("", "US"))
}

func TestPageWithCursor(t *testing.T) {
	subs := []models.ResumeSubmission{{SubmissionUUID: "c"}, {SubmissionUUID: "b"}, {SubmissionUUID: "a"}}

	page, next, err := PageWithCursor(subs, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "b", next)

	page, next, err = PageWithCursor(subs, 3)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
