package codec

import (
	"errors"
	"fmt"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
)

// 错误定义
var (
	ErrNilValue      = errors.New("记录内容为空")
	ErrUnknownFormat = errors.New("未知的序列化格式")
	ErrCorruptData   = errors.New("数据已损坏")
)

// ChunkCodec 将一批记录编码为可以追加到块文件的字节序列
// 编码结果必须保持记录顺序，并且自带边界信息，
// 读取方在没有外部元数据的情况下也能恢复出每条记录
type ChunkCodec interface {
	// Encode 编码一批记录，编码失败说明数据不符合约定，不可重试
	Encode(records []*protocol.Record) ([]byte, error)
	// Close 结束当前块，返回需要写入块尾部的字节，可以为空
	Close() ([]byte, error)
}

// Decoder 从字节序列中恢复记录，供读取端和校验使用
type Decoder interface {
	// DecodeAll 解析一段完整的记录序列
	DecodeAll(data []byte) ([]*protocol.Record, error)
}

// Factory 为每个块创建新的编码器实例
type Factory interface {
	// Name 返回格式名称
	Name() string
	// New 为指定分区和起始偏移量建立新的块编码上下文
	New(pk protocol.PartitionKey, startOffset int64) ChunkCodec
	// NewDecoder 创建对应格式的解码器
	NewDecoder() Decoder
}

// NewFactory 根据配置的格式名称创建编码器工厂
func NewFactory(format string) (Factory, error) {
	switch format {
	case "", FormatBinary:
		return &binaryFactory{}, nil
	case FormatProto:
		return &protoFactory{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}
