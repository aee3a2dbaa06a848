package sink

import (
	"errors"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/remote"
)

// 协议违例说明宿主和核心之间的协调出了问题，不是数据问题，
// 一律按致命错误处理
var (
	ErrPartitionNotAssigned = errors.New("分区没有活跃的会话")
	ErrSessionClosed        = errors.New("会话已关闭")
	ErrNotActive            = errors.New("会话不在可写状态")
)

// IsRetriable 判断错误是否可以重试
// 只有远端传输错误可以重试，其余错误都是致命的
func IsRetriable(err error) bool {
	return remote.IsRetriable(err)
}
