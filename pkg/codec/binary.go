package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
)

const (
	// FormatBinary 默认的二进制格式
	FormatBinary = "binary"

	// 属性标志位
	attrHasKey byte = 0x01 // 记录是否携带键
)

// binaryFactory 二进制格式工厂
type binaryFactory struct{}

func (f *binaryFactory) Name() string { return FormatBinary }

func (f *binaryFactory) New(pk protocol.PartitionKey, startOffset int64) ChunkCodec {
	return &binaryCodec{pk: pk, startOffset: startOffset}
}

func (f *binaryFactory) NewDecoder() Decoder { return &binaryDecoder{} }

// binaryCodec 将记录编码为长度前缀的二进制格式
// 格式:
// - 1字节: 属性标志
// - 4字节: 键长度（仅当携带键时存在）
// - 键字节: 键内容
// - 4字节: 内容长度
// - 内容字节: 记录内容
type binaryCodec struct {
	pk          protocol.PartitionKey
	startOffset int64
	closed      bool
}

// Encode 编码一批记录
func (c *binaryCodec) Encode(records []*protocol.Record) ([]byte, error) {
	if c.closed {
		return nil, fmt.Errorf("编码器已关闭: %s", c.pk)
	}

	// 计算所需的总字节数
	totalSize := 0
	for _, r := range records {
		if r.Value == nil {
			return nil, fmt.Errorf("%w: 分区 %s", ErrNilValue, c.pk)
		}
		totalSize += 1 + 4 + len(r.Value)
		if r.Key != nil {
			totalSize += 4 + len(r.Key)
		}
	}

	buf := make([]byte, totalSize)
	offset := 0
	for _, r := range records {
		// 写入属性标志
		var attrs byte
		if r.Key != nil {
			attrs |= attrHasKey
		}
		buf[offset] = attrs
		offset++

		// 写入键
		if r.Key != nil {
			binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(r.Key)))
			offset += 4
			copy(buf[offset:offset+len(r.Key)], r.Key)
			offset += len(r.Key)
		}

		// 写入内容
		binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(r.Value)))
		offset += 4
		copy(buf[offset:offset+len(r.Value)], r.Value)
		offset += len(r.Value)
	}

	return buf, nil
}

// Close 二进制格式没有块尾部
func (c *binaryCodec) Close() ([]byte, error) {
	c.closed = true
	return nil, nil
}

// binaryDecoder 二进制格式解码器
type binaryDecoder struct{}

// DecodeAll 从二进制格式恢复记录序列
func (d *binaryDecoder) DecodeAll(data []byte) ([]*protocol.Record, error) {
	var records []*protocol.Record
	offset := 0

	for offset < len(data) {
		// 读取属性标志
		attrs := data[offset]
		offset++

		var key []byte
		if attrs&attrHasKey != 0 {
			// 读取键
			if offset+4 > len(data) {
				return nil, fmt.Errorf("%w: 无法读取键长度", ErrCorruptData)
			}
			keyLen := binary.BigEndian.Uint32(data[offset : offset+4])
			offset += 4
			if offset+int(keyLen) > len(data) {
				return nil, fmt.Errorf("%w: 无法读取键", ErrCorruptData)
			}
			key = make([]byte, keyLen)
			copy(key, data[offset:offset+int(keyLen)])
			offset += int(keyLen)
		}

		// 读取内容
		if offset+4 > len(data) {
			return nil, fmt.Errorf("%w: 无法读取内容长度", ErrCorruptData)
		}
		valueLen := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		if offset+int(valueLen) > len(data) {
			return nil, fmt.Errorf("%w: 无法读取内容", ErrCorruptData)
		}
		value := make([]byte, valueLen)
		copy(value, data[offset:offset+int(valueLen)])
		offset += int(valueLen)

		records = append(records, &protocol.Record{Key: key, Value: value})
	}

	return records, nil
}
