package handler

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"resume-normalizer/internal/logger"
	"resume-normalizer/internal/processor"
	"resume-normalizer/internal/storage"
	"resume-normalizer/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// StandardizeRequest 同步标准化请求体
type StandardizeRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// ResumeDetailResponse 单条记录查询响应
type ResumeDetailResponse struct {
	Status string              `json:"status"`
	Record *types.ResumeRecord `json:"record"`
}

// ResumeListItem 列表中的摘要信息
type ResumeListItem struct {
	SubmissionUUID   string `json:"submission_uuid"`
	OriginalFilename string `json:"original_filename"`
	Status           string `json:"status"`
	PrimaryEmail     string `json:"primary_email,omitempty"`
	UnmatchedCount   int    `json:"unmatched_count"`
}

// ResumeListResponse 游标分页响应，NextCursor 为空表示没有下一页
type ResumeListResponse struct {
	Cursor     string           `json:"cursor"`
	NextCursor string           `json:"next_cursor"`
	Size       int              `json:"size"`
	Resumes    []ResumeListItem `json:"resumes"`
}

// Health 健康检查
func (h *ResumeHandler) Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok", "upload_enabled": h.UploadEnabled()})
}

// HandleStandardize POST /api/v1/resume/standardize
func (h *ResumeHandler) HandleStandardize(c context.Context, ctx *app.RequestContext) {
	var req StandardizeRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	rec, err := h.Standardize(c, req.Text, req.Source)
	if err != nil {
		if errors.Is(err, processor.ErrEmptyText) {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
			return
		}
		logger.Ctx(c).Error().Err(err).Msg("同步标准化失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, rec)
}

// HandleUpload POST /api/v1/resume/upload (multipart 字段 file)
func (h *ResumeHandler) HandleUpload(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
		return
	}
	if limit := int64(h.cfg.Server.MaxUploadMB) << 20; limit > 0 && fileHeader.Size > limit {
		ctx.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件过大"})
		return
	}
	sourceChannel := ctx.PostForm("source_channel")
	if sourceChannel == "" {
		sourceChannel = "web_upload"
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
		return
	}

	resp, err := h.HandleResumeUpload(c, data, fileHeader.Filename, sourceChannel)
	switch {
	case errors.Is(err, ErrUploadUnavailable):
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": err.Error()})
	case errors.Is(err, ErrUnsupportedFile):
		ctx.JSON(consts.StatusUnsupportedMediaType, utils.H{"error": err.Error()})
	case err != nil:
		logger.Ctx(c).Error().Err(err).Str("filename", fileHeader.Filename).Msg("上传简历失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
	default:
		ctx.JSON(consts.StatusOK, resp)
	}
}

// HandleGetResume GET /api/v1/resume/:uuid
func (h *ResumeHandler) HandleGetResume(c context.Context, ctx *app.RequestContext) {
	submissionUUID := ctx.Param("uuid")
	rec, status, err := h.GetRecord(c, submissionUUID)
	switch {
	case errors.Is(err, ErrUploadUnavailable):
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "记录不存在"})
	case err != nil:
		logger.Ctx(c).Error().Err(err).Str("submission_uuid", submissionUUID).Msg("查询记录失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "查询记录失败"})
	default:
		ctx.JSON(consts.StatusOK, ResumeDetailResponse{Status: status, Record: rec})
	}
}

// HandleListResumes GET /api/v1/resumes?cursor=&size=
func (h *ResumeHandler) HandleListResumes(c context.Context, ctx *app.RequestContext) {
	if h.deps.Submissions == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": ErrUploadUnavailable.Error()})
		return
	}
	cursor := strings.TrimSpace(ctx.Query("cursor"))
	size := parsePageSize(ctx.Query("size"))

	subs, next, err := h.deps.Submissions.ListSubmissions(c, cursor, size)
	if err != nil {
		logger.Ctx(c).Error().Err(err).Msg("分页查询失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "分页查询失败"})
		return
	}

	items := make([]ResumeListItem, 0, len(subs))
	for _, s := range subs {
		items = append(items, ResumeListItem{
			SubmissionUUID:   s.SubmissionUUID,
			OriginalFilename: s.OriginalFilename,
			Status:           s.ProcessingStatus,
			PrimaryEmail:     s.PrimaryEmail,
			UnmatchedCount:   s.UnmatchedCount,
		})
	}
	ctx.JSON(consts.StatusOK, ResumeListResponse{Cursor: cursor, NextCursor: next, Size: size, Resumes: items})
}

// HandleReviewLog GET /api/v1/review/unmatched
func (h *ResumeHandler) HandleReviewLog(c context.Context, ctx *app.RequestContext) {
	unmatched, err := h.ReviewLog()
	if err != nil {
		logger.Ctx(c).Error().Err(err).Msg("读取复核日志失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取复核日志失败"})
		return
	}
	ctx.JSON(consts.StatusOK, unmatched)
}

func parsePageSize(s string) int {
	size, err := strconv.Atoi(s)
	if err != nil || size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}
