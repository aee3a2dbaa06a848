package remote

import (
	"context"
	"errors"
	"fmt"
)

// 错误定义
var (
	ErrObjectNotFound = errors.New("对象不存在")
)

// RetriableError 标记一个可以重试的远端传输错误
// 提交和恢复过程中的网络或对象存储故障都属于这一类，
// 本地状态不会被修改，调用方重新发起同一个操作即可
type RetriableError struct {
	Err error
}

func (e *RetriableError) Error() string {
	return fmt.Sprintf("可重试的远端错误: %v", e.Err)
}

func (e *RetriableError) Unwrap() error {
	return e.Err
}

// Retriable 将错误包装为可重试错误
func Retriable(err error) error {
	if err == nil {
		return nil
	}
	return &RetriableError{Err: err}
}

// IsRetriable 判断错误是否可以重试
// 不可重试的错误（配置、序列化、本地文件系统、协议违例）都是致命的
func IsRetriable(err error) bool {
	var re *RetriableError
	return errors.As(err, &re)
}

// ObjectStore 定义对象存储的最小接口
// 上传必须是单对象原子的: 不存在部分可见的对象
type ObjectStore interface {
	// PutFile 上传本地文件到指定键，已存在的对象被整体覆盖
	PutFile(ctx context.Context, key string, filePath string) error
	// Get 下载指定键的对象内容
	Get(ctx context.Context, key string) ([]byte, error)
	// List 列出指定前缀下的所有对象键
	List(ctx context.Context, prefix string) ([]string, error)
}
