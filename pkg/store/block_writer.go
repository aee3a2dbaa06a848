package store

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// DefaultBlockSize 默认的段大小阈值 - 64MB
	DefaultBlockSize = 64 * 1024 * 1024
	// IndexFileSuffix 索引文件后缀
	IndexFileSuffix = ".index"
	// DataFileSuffix 数据文件后缀
	DataFileSuffix = ".gz"
)

// 错误定义
var (
	ErrWriterFinalized = fmt.Errorf("块已封存，不能继续写入")
)

// BlockWriter 将编码后的记录字节累积为一个本地块
// 块由一个多段压缩的数据文件和一个索引文件组成，
// 每个段是独立的 gzip 流，读取方可以通过累加索引条目
// 定位到任意记录偏移量，只解压对应的段
//
// 段大小是软上限: 当前段累计的未压缩字节数超过阈值时，
// 先封存该段再执行本次追加，单次追加不会被拆分到两个段
type BlockWriter struct {
	name        string // 本地文件名前缀，通常为 topic-分区号
	dir         string
	startOffset int64 // 块内首条记录的偏移量
	threshold   int64 // 段的未压缩字节数软上限

	dataPath  string
	indexPath string
	dataFile  *os.File
	cw        *countingWriter
	gz        *gzip.Writer

	segStart   int64 // 当前段在数据文件中的起始位置（压缩后）
	segBytes   int64 // 当前段累计的未压缩字节数
	segRecords uint32

	index        []IndexEntry
	totalRecords int64
	finalized    bool
}

// countingWriter 统计写入数据文件的压缩后字节数
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// NewBlockWriter 创建一个新的块写入器
func NewBlockWriter(name string, dir string, startOffset int64, threshold int64) (*BlockWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建缓冲目录失败: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultBlockSize
	}

	dataPath := filepath.Join(dir, fmt.Sprintf("%s-%020d%s", name, startOffset, DataFileSuffix))
	indexPath := filepath.Join(dir, fmt.Sprintf("%s-%020d%s", name, startOffset, IndexFileSuffix))

	// 打开数据文件
	dataFile, err := os.OpenFile(dataPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("创建数据文件失败: %w", err)
	}

	w := &BlockWriter{
		name:        name,
		dir:         dir,
		startOffset: startOffset,
		threshold:   threshold,
		dataPath:    dataPath,
		indexPath:   indexPath,
		dataFile:    dataFile,
	}
	w.cw = &countingWriter{w: dataFile}
	w.gz = gzip.NewWriter(w.cw)

	return w, nil
}

// Append 追加编码后的记录字节到当前段
// 如果当前段累计的未压缩字节数已经超过阈值，
// 先封存当前段并开启新段，本次追加整体写入新段
func (w *BlockWriter) Append(data []byte, recordCount int) error {
	if w.finalized {
		return ErrWriterFinalized
	}

	// 检查段大小，封存已超过阈值的段
	if w.segBytes > w.threshold && w.segRecords > 0 {
		if err := w.sealSegment(); err != nil {
			return err
		}
	}

	if _, err := w.gz.Write(data); err != nil {
		return fmt.Errorf("写入数据失败: %w", err)
	}

	w.segBytes += int64(len(data))
	w.segRecords += uint32(recordCount)
	w.totalRecords += int64(recordCount)

	return nil
}

// sealSegment 封存当前段: 关闭 gzip 流，记录索引条目，开启新段
func (w *BlockWriter) sealSegment() error {
	if err := w.gz.Close(); err != nil {
		return fmt.Errorf("封存段失败: %w", err)
	}

	w.index = append(w.index, IndexEntry{
		ByteLength:  uint64(w.cw.n - w.segStart),
		RecordCount: w.segRecords,
	})

	w.segStart = w.cw.n
	w.segBytes = 0
	w.segRecords = 0
	w.gz = gzip.NewWriter(w.cw)

	return nil
}

// RecordCount 返回块内已累积的记录总数
func (w *BlockWriter) RecordCount() int64 {
	return w.totalRecords
}

// IsEmpty 判断块是否为空，会话据此决定提交是否为空操作
func (w *BlockWriter) IsEmpty() bool {
	return w.totalRecords == 0
}

// StartOffset 返回块内首条记录的偏移量
func (w *BlockWriter) StartOffset() int64 {
	return w.startOffset
}

// DataFilePath 返回数据文件路径
func (w *BlockWriter) DataFilePath() string {
	return w.dataPath
}

// IndexFilePath 返回索引文件路径
func (w *BlockWriter) IndexFilePath() string {
	return w.indexPath
}

// Finalized 判断块是否已封存
func (w *BlockWriter) Finalized() bool {
	return w.finalized
}

// Finalize 封存块: 封存未完成的段，写入索引文件，关闭所有文件
// 封存后块不可变，继续追加会返回错误
func (w *BlockWriter) Finalize() (string, string, error) {
	if w.finalized {
		return "", "", ErrWriterFinalized
	}

	// 封存最后一个段
	// gzip 写入器在第一次写入前不会产生任何字节，
	// 空段直接丢弃，保证索引长度之和等于数据文件大小
	if w.segRecords > 0 || w.segBytes > 0 {
		if err := w.gz.Close(); err != nil {
			return "", "", fmt.Errorf("封存段失败: %w", err)
		}
		w.index = append(w.index, IndexEntry{
			ByteLength:  uint64(w.cw.n - w.segStart),
			RecordCount: w.segRecords,
		})
		w.segStart = w.cw.n
		w.segBytes = 0
		w.segRecords = 0
	}

	if err := w.dataFile.Sync(); err != nil {
		return "", "", fmt.Errorf("刷新数据文件失败: %w", err)
	}
	if err := w.dataFile.Close(); err != nil {
		return "", "", fmt.Errorf("关闭数据文件失败: %w", err)
	}

	// 写入索引文件
	if err := os.WriteFile(w.indexPath, EncodeIndex(w.index), 0644); err != nil {
		return "", "", fmt.Errorf("写入索引文件失败: %w", err)
	}

	w.finalized = true
	return w.dataPath, w.indexPath, nil
}

// Index 返回块的索引条目，仅在封存后有意义
func (w *BlockWriter) Index() []IndexEntry {
	return w.index
}

// Discard 删除块的本地文件，未提交的数据永远不会被上传
func (w *BlockWriter) Discard() error {
	if !w.finalized {
		// 关闭失败不影响删除
		w.dataFile.Close()
		w.finalized = true
	}

	if err := os.Remove(w.dataPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除数据文件失败: %w", err)
	}
	if err := os.Remove(w.indexPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除索引文件失败: %w", err)
	}
	return nil
}
