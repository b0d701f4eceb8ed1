package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-normalizer/internal/config"
	"resume-normalizer/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖。未启用的组件为 nil
type Storage struct {
	Files    *FileStore
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis
}

// NewStorage 按配置初始化各存储组件。
// 单个组件失败只记录警告；文件存储总是可用
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{Files: NewFileStore(cfg.Normalizer)}
	var initErrors []string
	var err error

	if cfg.MinIO.Enabled {
		if s.MinIO, err = NewMinIO(&cfg.MinIO, logger.StdLogger("minio")); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
			s.MinIO = nil
		}
	}

	if cfg.RabbitMQ.Enabled {
		if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
			s.RabbitMQ = nil
		} else if err = s.RabbitMQ.SetupResumeTopology(); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ topology: %v", err))
		}
	}

	if cfg.MySQL.Enabled {
		if s.MySQL, err = NewMySQL(&cfg.MySQL); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
			s.MySQL = nil
		}
	}

	if cfg.Redis.Enabled {
		if s.Redis, err = NewRedisAdapter(&cfg.Redis); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
			s.Redis = nil
		}
	}

	if len(initErrors) > 0 {
		logger.Ctx(ctx).Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}
	logger.Ctx(ctx).Info().
		Bool("minio", s.MinIO != nil).
		Bool("rabbitmq", s.RabbitMQ != nil).
		Bool("mysql", s.MySQL != nil).
		Bool("redis", s.Redis != nil).
		Msg("存储组件初始化完成")
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
