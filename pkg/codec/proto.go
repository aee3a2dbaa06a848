package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
)

const (
	// FormatProto protobuf 线格式
	FormatProto = "proto"

	// 字段编号
	fieldKey   protowire.Number = 1
	fieldValue protowire.Number = 2
)

// protoFactory protobuf 格式工厂
type protoFactory struct{}

func (f *protoFactory) Name() string { return FormatProto }

func (f *protoFactory) New(pk protocol.PartitionKey, startOffset int64) ChunkCodec {
	return &protoCodec{pk: pk, startOffset: startOffset}
}

func (f *protoFactory) NewDecoder() Decoder { return &protoDecoder{} }

// protoCodec 将记录编码为 varint 长度前缀的 protobuf 线格式
// 每条记录是一个消息: 字段1为键（可选），字段2为内容
type protoCodec struct {
	pk          protocol.PartitionKey
	startOffset int64
	closed      bool
}

// Encode 编码一批记录
func (c *protoCodec) Encode(records []*protocol.Record) ([]byte, error) {
	if c.closed {
		return nil, fmt.Errorf("编码器已关闭: %s", c.pk)
	}

	var buf []byte
	for _, r := range records {
		if r.Value == nil {
			return nil, fmt.Errorf("%w: 分区 %s", ErrNilValue, c.pk)
		}

		// 编码单条记录
		var msg []byte
		if r.Key != nil {
			msg = protowire.AppendTag(msg, fieldKey, protowire.BytesType)
			msg = protowire.AppendBytes(msg, r.Key)
		}
		msg = protowire.AppendTag(msg, fieldValue, protowire.BytesType)
		msg = protowire.AppendBytes(msg, r.Value)

		// 添加 varint 长度前缀
		buf = protowire.AppendVarint(buf, uint64(len(msg)))
		buf = append(buf, msg...)
	}

	return buf, nil
}

// Close protobuf 格式没有块尾部
func (c *protoCodec) Close() ([]byte, error) {
	c.closed = true
	return nil, nil
}

// protoDecoder protobuf 格式解码器
type protoDecoder struct{}

// DecodeAll 从 protobuf 线格式恢复记录序列
func (d *protoDecoder) DecodeAll(data []byte) ([]*protocol.Record, error) {
	var records []*protocol.Record

	for len(data) > 0 {
		// 读取长度前缀
		msgLen, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: 无法读取记录长度", ErrCorruptData)
		}
		data = data[n:]
		if uint64(len(data)) < msgLen {
			return nil, fmt.Errorf("%w: 记录不完整", ErrCorruptData)
		}

		msg := data[:msgLen]
		data = data[msgLen:]

		// 解析字段
		rec := &protocol.Record{}
		hasValue := false
		for len(msg) > 0 {
			num, typ, n := protowire.ConsumeTag(msg)
			if n < 0 {
				return nil, fmt.Errorf("%w: 无法读取字段标签", ErrCorruptData)
			}
			msg = msg[n:]

			if typ != protowire.BytesType {
				return nil, fmt.Errorf("%w: 意外的字段类型 %d", ErrCorruptData, typ)
			}
			val, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return nil, fmt.Errorf("%w: 无法读取字段内容", ErrCorruptData)
			}
			msg = msg[n:]

			switch num {
			case fieldKey:
				rec.Key = append([]byte{}, val...)
			case fieldValue:
				rec.Value = append([]byte{}, val...)
				hasValue = true
			}
		}

		if !hasValue {
			return nil, fmt.Errorf("%w: 记录缺少内容字段", ErrCorruptData)
		}
		records = append(records, rec)
	}

	return records, nil
}
