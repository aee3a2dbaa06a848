package sink

import (
	"errors"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/store"
)

// 配置错误在启动时就是致命的，任务不会运行
var (
	ErrNoBucket    = errors.New("必须配置对象存储 bucket")
	ErrNoBufferDir = errors.New("必须配置本地缓冲目录")
)

// Config 归档任务的配置
type Config struct {
	// Bucket 目标对象存储容器，必填
	Bucket string
	// Prefix 远端键前缀，默认为空
	Prefix string
	// BufferDir 本地缓冲目录，必填
	BufferDir string
	// BlockSize 段的未压缩字节数软上限，默认 64MB
	BlockSize int64
	// Format 块序列化格式，透传给编码器工厂，默认 binary
	Format string
}

// Validate 校验配置并填充默认值
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return ErrNoBucket
	}
	if c.BufferDir == "" {
		return ErrNoBufferDir
	}
	if c.BlockSize <= 0 {
		c.BlockSize = store.DefaultBlockSize
	}
	return nil
}
