package store

import (
	"encoding/binary"
	"fmt"
)

const (
	// IndexEntrySize 每个索引条目的字节数: 段压缩长度(8) + 记录数(4)
	IndexEntrySize = 12
)

// IndexEntry 描述数据文件中的一个段
// 索引条目的顺序与数据文件中段的顺序完全一致，
// 累加前 i 个条目的记录数即可得到第 i+1 个段首条记录相对块起点的偏移量
type IndexEntry struct {
	ByteLength  uint64 // 段的压缩后字节长度
	RecordCount uint32 // 段内记录数
}

// EncodeIndex 将索引条目序列化为二进制格式
func EncodeIndex(entries []IndexEntry) []byte {
	buf := make([]byte, len(entries)*IndexEntrySize)
	for i, entry := range entries {
		pos := i * IndexEntrySize
		binary.BigEndian.PutUint64(buf[pos:pos+8], entry.ByteLength)
		binary.BigEndian.PutUint32(buf[pos+8:pos+12], entry.RecordCount)
	}
	return buf
}

// DecodeIndex 从二进制格式解析索引条目
func DecodeIndex(data []byte) ([]IndexEntry, error) {
	if len(data)%IndexEntrySize != 0 {
		return nil, fmt.Errorf("索引数据长度无效: %d", len(data))
	}

	entries := make([]IndexEntry, 0, len(data)/IndexEntrySize)
	for pos := 0; pos < len(data); pos += IndexEntrySize {
		entries = append(entries, IndexEntry{
			ByteLength:  binary.BigEndian.Uint64(data[pos : pos+8]),
			RecordCount: binary.BigEndian.Uint32(data[pos+8 : pos+12]),
		})
	}
	return entries, nil
}

// TotalRecords 返回索引覆盖的记录总数
func TotalRecords(entries []IndexEntry) int64 {
	var total int64
	for _, entry := range entries {
		total += int64(entry.RecordCount)
	}
	return total
}

// TotalBytes 返回索引覆盖的数据文件总字节数
func TotalBytes(entries []IndexEntry) int64 {
	var total int64
	for _, entry := range entries {
		total += int64(entry.ByteLength)
	}
	return total
}
