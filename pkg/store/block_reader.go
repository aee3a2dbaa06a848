package store

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/codec"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
)

// ReadRecords 从已封存的块中读取记录
// 通过累加索引条目定位包含目标偏移量的段，只解压需要的段，
// 不需要从块的起点开始解压
//
// chunkStart 是块首条记录的偏移量，offset 是目标记录的偏移量，
// count 是最多读取的记录数
func ReadRecords(dataPath, indexPath string, dec codec.Decoder, chunkStart, offset int64, count int) ([]*protocol.Record, error) {
	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("读取索引文件失败: %w", err)
	}
	entries, err := DecodeIndex(indexData)
	if err != nil {
		return nil, err
	}

	total := TotalRecords(entries)
	if offset < chunkStart || offset >= chunkStart+total {
		return nil, fmt.Errorf("偏移量 %d 不在块范围内 [%d, %d)", offset, chunkStart, chunkStart+total)
	}

	dataFile, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据文件失败: %w", err)
	}
	defer dataFile.Close()

	var records []*protocol.Record
	var bytePos int64   // 当前段在数据文件中的起始位置
	segFirst := chunkStart // 当前段首条记录的偏移量

	for _, entry := range entries {
		segLast := segFirst + int64(entry.RecordCount)

		// 跳过目标偏移量之前的段
		if segLast <= offset {
			bytePos += int64(entry.ByteLength)
			segFirst = segLast
			continue
		}

		// 解压该段
		segRecords, err := readSegment(dataFile, bytePos, int64(entry.ByteLength), dec)
		if err != nil {
			return nil, err
		}
		if int64(len(segRecords)) != int64(entry.RecordCount) {
			return nil, fmt.Errorf("段记录数与索引不一致: 期望 %d, 实际 %d", entry.RecordCount, len(segRecords))
		}

		// 跳过段内目标偏移量之前的记录
		skip := int64(0)
		if offset > segFirst {
			skip = offset - segFirst
		}
		for _, rec := range segRecords[skip:] {
			records = append(records, rec)
			if len(records) >= count {
				return records, nil
			}
		}

		bytePos += int64(entry.ByteLength)
		segFirst = segLast
	}

	return records, nil
}

// readSegment 解压并解码数据文件中的一个段
func readSegment(dataFile *os.File, pos int64, length int64, dec codec.Decoder) ([]*protocol.Record, error) {
	if _, err := dataFile.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("定位段失败: %w", err)
	}

	gz, err := gzip.NewReader(io.LimitReader(dataFile, length))
	if err != nil {
		return nil, fmt.Errorf("打开压缩流失败: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("解压段失败: %w", err)
	}

	return dec.DecodeAll(raw)
}
