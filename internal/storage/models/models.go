package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ResumeSubmission 一次简历提交及其标准化结果
type ResumeSubmission struct {
	SubmissionUUID      string         `gorm:"type:char(36);primaryKey"`
	SubmissionTimestamp time.Time      `gorm:"type:datetime(6);not null;index:idx_submissions_ts"`
	SourceChannel       string         `gorm:"type:varchar(100)"`
	OriginalFilename    string         `gorm:"type:varchar(255)"`
	OriginalFilePathOSS string         `gorm:"column:original_file_path_oss;type:varchar(512)"`
	RawFileMD5          string         `gorm:"column:raw_file_md5;type:char(32);index:idx_submissions_raw_md5"`
	TextMD5             string         `gorm:"column:text_md5;type:char(32);index:idx_submissions_text_md5"`
	ProcessingStatus    string         `gorm:"type:varchar(50);default:'PENDING_PARSING';index:idx_submissions_status"`
	PrimaryEmail        string         `gorm:"type:varchar(255)"`
	PrimaryPhone        string         `gorm:"type:varchar(50)"` // E.164，无法解析时保留原值
	LinkedInURL         string         `gorm:"column:linkedin_url;type:varchar(255)"`
	ContactInfoJSON     datatypes.JSON `gorm:"column:contact_info_json;type:json"`
	SectionsJSON        datatypes.JSON `gorm:"column:sections_json;type:json"`
	StandardizedJSON    datatypes.JSON `gorm:"column:standardized_json;type:json"`
	UnmatchedJSON       datatypes.JSON `gorm:"column:unmatched_json;type:json"`
	WarningsJSON        datatypes.JSON `gorm:"column:warnings_json;type:json"`
	UnmatchedCount      int            `gorm:"default:0"`
	NormalizerVersion   string         `gorm:"type:varchar(20)"`
	ProcessedAt         *time.Time     `gorm:"type:datetime(6);null"`
	CreatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ResumeSubmission) TableName() string {
	return "resume_submissions"
}

// ToJSON 序列化为 datatypes.JSON，nil 保存为 JSON null
func ToJSON(v interface{}) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// FromJSON 反序列化 datatypes.JSON，空值不做处理
func FromJSON(data datatypes.JSON, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
