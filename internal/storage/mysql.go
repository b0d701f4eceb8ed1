package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/constants"
	"resume-normalizer/internal/storage/models"
	"resume-normalizer/internal/types"

	"github.com/nyaruka/phonenumbers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-normalizer/storage/mysql")

// DefaultPhoneRegion 号码不带国家码时按此地区解析
const DefaultPhoneRegion = "US"

type spanCtxKey struct{}

// GormTracingPlugin 为 GORM 的 CRUD 回调添加 OpenTelemetry span
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		before, after func(string, func(*gorm.DB)) error
		op            string
	}{
		{
			before: func(n string, f func(*gorm.DB)) error { return cb.Create().Before("gorm:create").Register(n, f) },
			after:  func(n string, f func(*gorm.DB)) error { return cb.Create().After("gorm:create").Register(n, f) },
			op:     "CREATE",
		},
		{
			before: func(n string, f func(*gorm.DB)) error { return cb.Query().Before("gorm:query").Register(n, f) },
			after:  func(n string, f func(*gorm.DB)) error { return cb.Query().After("gorm:query").Register(n, f) },
			op:     "SELECT",
		},
		{
			before: func(n string, f func(*gorm.DB)) error { return cb.Update().Before("gorm:update").Register(n, f) },
			after:  func(n string, f func(*gorm.DB)) error { return cb.Update().After("gorm:update").Register(n, f) },
			op:     "UPDATE",
		},
		{
			before: func(n string, f func(*gorm.DB)) error { return cb.Delete().Before("gorm:delete").Register(n, f) },
			after:  func(n string, f func(*gorm.DB)) error { return cb.Delete().After("gorm:delete").Register(n, f) },
			op:     "DELETE",
		},
		{
			before: func(n string, f func(*gorm.DB)) error { return cb.Raw().Before("gorm:raw").Register(n, f) },
			after:  func(n string, f func(*gorm.DB)) error { return cb.Raw().After("gorm:raw").Register(n, f) },
			op:     "RAW",
		},
	}
	for _, s := range steps {
		name := strings.ToLower(s.op)
		if err := s.before("otel:before_"+name, p.before(s.op)); err != nil {
			return err
		}
		if err := s.after("otel:after_"+name, p.after()); err != nil {
			return err
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, spanCtxKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanCtxKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", sql))
		}

		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 查不到是正常业务结果
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			span.SetAttributes(attribute.String("error.type", "database_error"))
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}
	}
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 保存提交记录、标准化结果与 outbox 消息
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 连接MySQL并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	timeout := cfg.ConnectTimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, timeout)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}
	return m, nil
}

func gormLogLevel(level int) logger.LogLevel {
	switch level {
	case 1:
		return logger.Silent
	case 2:
		return logger.Error
	case 3:
		return logger.Warn
	case 4:
		return logger.Info
	default:
		return logger.Warn
	}
}

func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{LogLevel: logger.Silent, IgnoreRecordNotFoundError: true},
	)})
	if err := silentDB.AutoMigrate(&models.ResumeSubmission{}, &models.OutboxMessage{}); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// Ping 健康检查
func (m *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateSubmission 登记一次上传，主键冲突时保持幂等
func (m *MySQL) CreateSubmission(ctx context.Context, sub *models.ResumeSubmission) error {
	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"submission_uuid"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("创建提交记录失败: %w", err)
	}
	return nil
}

// UpdateProcessingStatus 更新处理状态
func (m *MySQL) UpdateProcessingStatus(ctx context.Context, submissionUUID, status string) error {
	return m.db.WithContext(ctx).Model(&models.ResumeSubmission{}).
		Where("submission_uuid = ?", submissionUUID).
		Update("processing_status", status).Error
}

// SaveRecordWithOutbox 在同一事务中写入标准化结果与待发布事件
func (m *MySQL) SaveRecordWithOutbox(ctx context.Context, sub *models.ResumeSubmission, msgs ...*models.OutboxMessage) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "submission_uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"text_md5", "processing_status", "primary_email", "primary_phone", "linkedin_url",
				"contact_info_json", "sections_json", "standardized_json", "unmatched_json",
				"warnings_json", "unmatched_count", "normalizer_version", "processed_at",
			}),
		}).Create(sub).Error
		if err != nil {
			return fmt.Errorf("保存标准化结果失败: %w", err)
		}
		for _, msg := range msgs {
			if err := tx.Create(msg).Error; err != nil {
				return fmt.Errorf("写入outbox消息失败: %w", err)
			}
		}
		return nil
	})
}

// GetSubmission 按 UUID 读取，不存在时返回 ErrNotFound
func (m *MySQL) GetSubmission(ctx context.Context, submissionUUID string) (*models.ResumeSubmission, error) {
	var sub models.ResumeSubmission
	err := m.db.WithContext(ctx).First(&sub, "submission_uuid = ?", submissionUUID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询提交记录失败: %w", err)
	}
	return &sub, nil
}

// ListSubmissions 按 UUIDv7 倒序游标分页。cursor 为上一页最后一条的 UUID，
// 返回的 nextCursor 为空表示没有更多数据
func (m *MySQL) ListSubmissions(ctx context.Context, cursor string, size int) ([]models.ResumeSubmission, string, error) {
	if size <= 0 || size > 100 {
		size = 20
	}
	q := m.db.WithContext(ctx).Model(&models.ResumeSubmission{}).Order("submission_uuid desc").Limit(size + 1)
	if cursor != "" {
		q = q.Where("submission_uuid < ?", cursor)
	}

	var subs []models.ResumeSubmission
	if err := q.Find(&subs).Error; err != nil {
		return nil, "", fmt.Errorf("分页查询提交记录失败: %w", err)
	}
	return PageWithCursor(subs, size)
}

// PageWithCursor 截取 size 条并在有剩余时返回下一页游标
func PageWithCursor(subs []models.ResumeSubmission, size int) ([]models.ResumeSubmission, string, error) {
	if len(subs) <= size {
		return subs, "", nil
	}
	page := subs[:size]
	return page, page[len(page)-1].SubmissionUUID, nil
}

// NormalizePhone 把原始号码转换为 E.164，解析失败时返回原值
func NormalizePhone(raw, region string) string {
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// RecordToSubmission 把标准化结果转换为数据库行
func RecordToSubmission(rec *types.ResumeRecord, status string) (*models.ResumeSubmission, error) {
	sub := &models.ResumeSubmission{
		SubmissionUUID:      rec.SubmissionUUID,
		SubmissionTimestamp: rec.ProcessedAt,
		OriginalFilename:    rec.Source,
		TextMD5:             rec.TextMD5,
		ProcessingStatus:    status,
		PrimaryEmail:        rec.ContactInfo.Email.Value,
		PrimaryPhone:        NormalizePhone(rec.ContactInfo.Phone.Value, DefaultPhoneRegion),
		LinkedInURL:         rec.ContactInfo.LinkedIn.Value,
		UnmatchedCount:      len(rec.Unmatched),
		NormalizerVersion:   constants.NormalizerVersion,
	}
	if !rec.ProcessedAt.IsZero() {
		t := rec.ProcessedAt
		sub.ProcessedAt = &t
	}

	var err error
	if sub.ContactInfoJSON, err = models.ToJSON(rec.ContactInfo); err != nil {
		return nil, fmt.Errorf("序列化联系方式失败: %w", err)
	}
	if sub.SectionsJSON, err = models.ToJSON(rec.Sections); err != nil {
		return nil, fmt.Errorf("序列化原始章节失败: %w", err)
	}
	if sub.StandardizedJSON, err = models.ToJSON(rec.Standardized); err != nil {
		return nil, fmt.Errorf("序列化标准章节失败: %w", err)
	}
	if sub.UnmatchedJSON, err = models.ToJSON(rec.Unmatched); err != nil {
		return nil, fmt.Errorf("序列化未匹配章节失败: %w", err)
	}
	if sub.WarningsJSON, err = models.ToJSON(rec.Warnings); err != nil {
		return nil, fmt.Errorf("序列化警告失败: %w", err)
	}
	return sub, nil
}

// SubmissionToRecord 从数据库行还原标准化结果
func SubmissionToRecord(sub *models.ResumeSubmission) (*types.ResumeRecord, error) {
	rec := &types.ResumeRecord{
		SubmissionUUID: sub.SubmissionUUID,
		Source:         sub.OriginalFilename,
		TextMD5:        sub.TextMD5,
	}
	if sub.ProcessedAt != nil {
		rec.ProcessedAt = *sub.ProcessedAt
	}
	for _, f := range []struct {
		data   []byte
		target interface{}
	}{
		{sub.ContactInfoJSON, &rec.ContactInfo},
		{sub.SectionsJSON, &rec.Sections},
		{sub.StandardizedJSON, &rec.Standardized},
		{sub.UnmatchedJSON, &rec.Unmatched},
		{sub.WarningsJSON, &rec.Warnings},
	} {
		if err := models.FromJSON(f.data, f.target); err != nil {
			return nil, fmt.Errorf("反序列化提交记录 %s 失败: %w", sub.SubmissionUUID, err)
		}
	}
	return rec, nil
}
