package store

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockWriterSingleSegment(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-writer-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writer, err := NewBlockWriter("test-topic-00000", tempDir, 0, DefaultBlockSize)
	if err != nil {
		t.Fatalf("创建块写入器失败: %v", err)
	}

	assert.True(t, writer.IsEmpty())

	// 写入三批记录，都落在同一个段
	if err := writer.Append([]byte("batch-one"), 2); err != nil {
		t.Fatalf("追加失败: %v", err)
	}
	if err := writer.Append([]byte("batch-two"), 3); err != nil {
		t.Fatalf("追加失败: %v", err)
	}

	assert.False(t, writer.IsEmpty())
	assert.Equal(t, int64(5), writer.RecordCount())

	dataPath, indexPath, err := writer.Finalize()
	if err != nil {
		t.Fatalf("封存块失败: %v", err)
	}

	// 索引只有一个段，记录数等于总数
	indexData, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	entries, err := DecodeIndex(indexData)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, uint32(5), entries[0].RecordCount)

	// 索引的字节长度之和等于数据文件大小
	info, err := os.Stat(dataPath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), TotalBytes(entries))
}

func TestBlockWriterRotation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-writer-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// 阈值设为 10 字节，每次追加 8 字节
	writer, err := NewBlockWriter("test-topic-00000", tempDir, 0, 10)
	if err != nil {
		t.Fatalf("创建块写入器失败: %v", err)
	}

	// 超过阈值的段在下一次追加前被封存:
	// 追加1: 段=8  追加2: 段=16  追加3: 封存(2条), 段=8
	// 追加4: 段=16  追加5: 封存(2条), 段=8  封存时: 最后一段(1条)
	for i := 0; i < 5; i++ {
		if err := writer.Append([]byte("12345678"), 1); err != nil {
			t.Fatalf("追加失败: %v", err)
		}
	}

	dataPath, _, err := writer.Finalize()
	if err != nil {
		t.Fatalf("封存块失败: %v", err)
	}

	entries := writer.Index()
	require.Len(t, entries, 3)
	assert.Equal(t, uint32(2), entries[0].RecordCount)
	assert.Equal(t, uint32(2), entries[1].RecordCount)
	assert.Equal(t, uint32(1), entries[2].RecordCount)
	assert.Equal(t, int64(5), TotalRecords(entries))

	// 段边界必须和数据文件完全对应
	info, err := os.Stat(dataPath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), TotalBytes(entries))
}

func TestBlockWriterAppendNeverSplits(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-writer-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writer, err := NewBlockWriter("test-topic-00000", tempDir, 0, 10)
	if err != nil {
		t.Fatalf("创建块写入器失败: %v", err)
	}

	// 单次追加远超阈值，整体写入一个段，段大小是软上限
	big := bytes.Repeat([]byte("x"), 1000)
	if err := writer.Append(big, 4); err != nil {
		t.Fatalf("追加失败: %v", err)
	}

	if _, _, err := writer.Finalize(); err != nil {
		t.Fatalf("封存块失败: %v", err)
	}

	entries := writer.Index()
	require.Len(t, entries, 1)
	assert.Equal(t, uint32(4), entries[0].RecordCount)
}

func TestBlockWriterFinalizedIsImmutable(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-writer-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writer, err := NewBlockWriter("test-topic-00000", tempDir, 0, 0)
	if err != nil {
		t.Fatalf("创建块写入器失败: %v", err)
	}
	if err := writer.Append([]byte("data"), 1); err != nil {
		t.Fatalf("追加失败: %v", err)
	}

	if _, _, err := writer.Finalize(); err != nil {
		t.Fatalf("封存块失败: %v", err)
	}

	assert.ErrorIs(t, writer.Append([]byte("more"), 1), ErrWriterFinalized)

	_, _, err = writer.Finalize()
	assert.ErrorIs(t, err, ErrWriterFinalized)
}

func TestBlockWriterEmptyFinalize(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-writer-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writer, err := NewBlockWriter("test-topic-00000", tempDir, 0, 0)
	if err != nil {
		t.Fatalf("创建块写入器失败: %v", err)
	}

	dataPath, indexPath, err := writer.Finalize()
	if err != nil {
		t.Fatalf("封存空块失败: %v", err)
	}

	// 空块: 数据文件为空，索引没有条目
	info, err := os.Stat(dataPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	indexData, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	assert.Empty(t, indexData)
}

func TestBlockWriterDiscard(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-writer-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("未封存", func(t *testing.T) {
		writer, err := NewBlockWriter("topic-a-00000", tempDir, 0, 0)
		require.NoError(t, err)
		require.NoError(t, writer.Append([]byte("buffered"), 1))

		if err := writer.Discard(); err != nil {
			t.Fatalf("丢弃失败: %v", err)
		}

		_, err = os.Stat(writer.DataFilePath())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("已封存", func(t *testing.T) {
		writer, err := NewBlockWriter("topic-b-00000", tempDir, 0, 0)
		require.NoError(t, err)
		require.NoError(t, writer.Append([]byte("buffered"), 1))
		_, _, err = writer.Finalize()
		require.NoError(t, err)

		if err := writer.Discard(); err != nil {
			t.Fatalf("丢弃失败: %v", err)
		}

		_, err = os.Stat(writer.DataFilePath())
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(writer.IndexFilePath())
		assert.True(t, os.IsNotExist(err))
	})
}

func TestIndexDecodeInvalidLength(t *testing.T) {
	_, err := DecodeIndex(make([]byte, IndexEntrySize+1))
	assert.Error(t, err)
}
