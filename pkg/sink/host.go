package sink

import "github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"

// Host 定义核心消耗的宿主运行时原语
// 具体宿主（比如 Kafka Connect 运行时）的适配层负责实现这些原语，
// 核心只依赖这个抽象契约
type Host interface {
	// Pause 暂停向指定分区投递记录
	Pause(pk protocol.PartitionKey)
	// Resume 恢复向指定分区投递记录
	Resume(pk protocol.PartitionKey)
	// ResetOffset 把宿主的投递游标重置到指定偏移量
	ResetOffset(pk protocol.PartitionKey, offset int64)
}
