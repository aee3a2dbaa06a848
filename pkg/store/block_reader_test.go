package store

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/codec"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
)

// 构造一个多段的块: 每条记录单独追加，阈值设得很小，
// 返回数据文件和索引文件路径
func writeTestBlock(t *testing.T, dir string, chunkStart int64, total int) (string, string) {
	t.Helper()

	factory, err := codec.NewFactory(codec.FormatBinary)
	require.NoError(t, err)

	pk := protocol.PartitionKey{Topic: "test-topic", Partition: 0}
	enc := factory.New(pk, chunkStart)

	writer, err := NewBlockWriter(pk.String(), dir, chunkStart, 8)
	require.NoError(t, err)

	for i := 0; i < total; i++ {
		data, err := enc.Encode([]*protocol.Record{
			{Value: []byte(fmt.Sprintf("record-%d", chunkStart+int64(i)))},
		})
		require.NoError(t, err)
		require.NoError(t, writer.Append(data, 1))
	}

	trailer, err := enc.Close()
	require.NoError(t, err)
	if len(trailer) > 0 {
		require.NoError(t, writer.Append(trailer, 0))
	}

	dataPath, indexPath, err := writer.Finalize()
	require.NoError(t, err)

	// 阈值足够小，块一定被切成了多个段
	require.Greater(t, len(writer.Index()), 1)

	return dataPath, indexPath
}

func TestBlockReaderFromMiddle(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-reader-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	const chunkStart = int64(100)
	dataPath, indexPath := writeTestBlock(t, tempDir, chunkStart, 10)

	factory, _ := codec.NewFactory(codec.FormatBinary)

	// 从块中间的偏移量开始读取
	records, err := ReadRecords(dataPath, indexPath, factory.NewDecoder(), chunkStart, 104, 4)
	if err != nil {
		t.Fatalf("读取记录失败: %v", err)
	}

	require.Len(t, records, 4)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("record-%d", 104+i), string(rec.Value))
	}
}

func TestBlockReaderWholeChunk(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-reader-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dataPath, indexPath := writeTestBlock(t, tempDir, 0, 10)

	factory, _ := codec.NewFactory(codec.FormatBinary)

	// 从块首读取，count 大于块内记录数时返回全部
	records, err := ReadRecords(dataPath, indexPath, factory.NewDecoder(), 0, 0, 100)
	if err != nil {
		t.Fatalf("读取记录失败: %v", err)
	}

	require.Len(t, records, 10)
	assert.Equal(t, "record-0", string(records[0].Value))
	assert.Equal(t, "record-9", string(records[9].Value))
}

func TestBlockReaderOffsetOutOfRange(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "block-reader-test")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	const chunkStart = int64(100)
	dataPath, indexPath := writeTestBlock(t, tempDir, chunkStart, 10)

	factory, _ := codec.NewFactory(codec.FormatBinary)

	// 块覆盖 [100, 110)，之外的偏移量必须报错
	_, err = ReadRecords(dataPath, indexPath, factory.NewDecoder(), chunkStart, 99, 1)
	assert.Error(t, err)

	_, err = ReadRecords(dataPath, indexPath, factory.NewDecoder(), chunkStart, 110, 1)
	assert.Error(t, err)
}
