package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PartitionKey 标识一个有序的记录子流
// 同一个分区内的偏移量严格递增，不同分区相互独立
type PartitionKey struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
}

// String 返回分区的规范名称，用于日志和本地文件名
func (pk PartitionKey) String() string {
	return fmt.Sprintf("%s-%05d", pk.Topic, pk.Partition)
}

// Record 表示一条待归档的记录
type Record struct {
	ID        string `json:"id"`        // 记录唯一标识符
	Topic     string `json:"topic"`     // 所属主题
	Partition int    `json:"partition"` // 所属分区
	Key       []byte `json:"key"`       // 记录键，可以为空
	Value     []byte `json:"value"`     // 记录内容
	Timestamp int64  `json:"timestamp"` // 记录创建时间
}

// NewRecord 创建一条新的记录
func NewRecord(topic string, partition int, key, value []byte) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Topic:     topic,
		Partition: partition,
		Key:       key,
		Value:     value,
		Timestamp: time.Now().Unix(),
	}
}

// PartitionKey 返回记录所属的分区
func (r *Record) PartitionKey() PartitionKey {
	return PartitionKey{Topic: r.Topic, Partition: r.Partition}
}
