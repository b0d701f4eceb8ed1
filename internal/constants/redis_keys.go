package constants

// Redis Key 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有 Redis Key 的应用前缀
	AppPrefix = "app"

	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"

	// EntityRecord 标准化结果实体
	EntityRecord = "record"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityMD5ToUUID MD5 到提交 UUID 的映射实体
	EntityMD5ToUUID = "md5_to_uuid"

	// KeyResumeRecord 规则版本 + 文本 MD5 -> 标准化结果 JSON (STRING)
	// 格式: app:resume:record:{version}:{rulesDigest}:{textMD5}
	KeyResumeRecord = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityRecord + ":%s"

	// KeyFileMD5Set 原始文件 MD5 集合，上传去重 (SET)
	// 格式: app:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyFileMD5ToSubmissionUUID 文件 MD5 -> SubmissionUUID (STRING)
	// 格式: app:file:md5_to_uuid:{md5}
	KeyFileMD5ToSubmissionUUID = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToUUID + ":%s"
)
