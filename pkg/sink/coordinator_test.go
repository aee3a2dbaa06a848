package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/remote"
)

// fakeHost 记录宿主原语的调用，供恢复流程断言
type fakeHost struct {
	paused  []protocol.PartitionKey
	resumed []protocol.PartitionKey
	resets  map[protocol.PartitionKey]int64
}

func newFakeHost() *fakeHost {
	return &fakeHost{resets: make(map[protocol.PartitionKey]int64)}
}

func (h *fakeHost) Pause(pk protocol.PartitionKey)  { h.paused = append(h.paused, pk) }
func (h *fakeHost) Resume(pk protocol.PartitionKey) { h.resumed = append(h.resumed, pk) }
func (h *fakeHost) ResetOffset(pk protocol.PartitionKey, offset int64) {
	h.resets[pk] = offset
}

// flakyStore 包装对象存储，按计划让接下来的上传失败
type flakyStore struct {
	*remote.MemoryStore
	failNext int
}

func (s *flakyStore) PutFile(ctx context.Context, key string, filePath string) error {
	if s.failNext > 0 {
		s.failNext--
		return fmt.Errorf("对象存储暂时不可用")
	}
	return s.MemoryStore.PutFile(ctx, key, filePath)
}

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Bucket:    "test-bucket",
		Prefix:    "archive",
		BufferDir: t.TempDir(),
		Format:    "binary",
	}
}

func makeRecords(topic string, partition int, values ...string) []*protocol.Record {
	records := make([]*protocol.Record, 0, len(values))
	for _, v := range values {
		records = append(records, protocol.NewRecord(topic, partition, nil, []byte(v)))
	}
	return records
}

func TestCoordinatorLifecycle(t *testing.T) {
	ctx := context.Background()
	pk := protocol.PartitionKey{Topic: "test-topic", Partition: 0}
	objects := remote.NewMemoryStore()
	cfg := newTestConfig(t)

	// 第一轮: 分配、投递三条记录、提交
	host := newFakeHost()
	coordinator, err := NewTaskCoordinator(cfg, objects, host)
	if err != nil {
		t.Fatalf("创建任务协调器失败: %v", err)
	}

	if err := coordinator.OnAssigned(ctx, []protocol.PartitionKey{pk}); err != nil {
		t.Fatalf("分配分区失败: %v", err)
	}

	// 远端为空，投递游标重置到 0，暂停和恢复各一次
	assert.Equal(t, []protocol.PartitionKey{pk}, host.paused)
	assert.Equal(t, []protocol.PartitionKey{pk}, host.resumed)
	assert.Equal(t, int64(0), host.resets[pk])

	if err := coordinator.OnRecordsDelivered(ctx, makeRecords("test-topic", 0, "a", "b", "c")); err != nil {
		t.Fatalf("投递记录失败: %v", err)
	}
	assert.Equal(t, int64(3), coordinator.Session(pk).BufferedRecords())

	if err := coordinator.OnCommitRequested(ctx); err != nil {
		t.Fatalf("提交失败: %v", err)
	}

	// 块 [0,3) 已上传，会话在偏移量 3 上开启了新块
	assert.Equal(t, 2, objects.Size())
	assert.Equal(t, int64(3), coordinator.Session(pk).NextOffset())
	assert.Equal(t, int64(0), coordinator.Session(pk).BufferedRecords())

	// 撤销后重新分配: 恢复偏移量只来自远端状态
	require.NoError(t, coordinator.OnRevoked([]protocol.PartitionKey{pk}))
	assert.Nil(t, coordinator.Session(pk))

	host2 := newFakeHost()
	coordinator2, err := NewTaskCoordinator(cfg, objects, host2)
	require.NoError(t, err)
	require.NoError(t, coordinator2.OnAssigned(ctx, []protocol.PartitionKey{pk}))

	assert.Equal(t, int64(3), host2.resets[pk], "投递游标必须重置到远端推导的偏移量")
	assert.Equal(t, int64(3), coordinator2.Session(pk).NextOffset())
}

func TestCoordinatorRevokeDiscardsBuffer(t *testing.T) {
	ctx := context.Background()
	pk := protocol.PartitionKey{Topic: "test-topic", Partition: 0}
	objects := remote.NewMemoryStore()
	cfg := newTestConfig(t)

	coordinator, err := NewTaskCoordinator(cfg, objects, newFakeHost())
	require.NoError(t, err)
	require.NoError(t, coordinator.OnAssigned(ctx, []protocol.PartitionKey{pk}))
	require.NoError(t, coordinator.OnRecordsDelivered(ctx, makeRecords("test-topic", 0, "a", "b")))

	session := coordinator.Session(pk)
	dataPath := session.writer.DataFilePath()

	// 提交前撤销: 远端不变，本地文件被删除
	require.NoError(t, coordinator.OnRevoked([]protocol.PartitionKey{pk}))

	assert.Equal(t, 0, objects.Size())
	_, err = os.Stat(dataPath)
	assert.True(t, os.IsNotExist(err))

	// 重新分配后从 0 恢复，丢弃的记录由上游重新投递
	host := newFakeHost()
	coordinator2, err := NewTaskCoordinator(cfg, objects, host)
	require.NoError(t, err)
	require.NoError(t, coordinator2.OnAssigned(ctx, []protocol.PartitionKey{pk}))
	assert.Equal(t, int64(0), host.resets[pk])
}

func TestCoordinatorUnassignedPartitionIsFatal(t *testing.T) {
	ctx := context.Background()
	objects := remote.NewMemoryStore()

	coordinator, err := NewTaskCoordinator(newTestConfig(t), objects, newFakeHost())
	require.NoError(t, err)

	err = coordinator.OnRecordsDelivered(ctx, makeRecords("test-topic", 0, "a"))
	assert.True(t, errors.Is(err, ErrPartitionNotAssigned))
	assert.False(t, IsRetriable(err))
}

func TestCoordinatorDuplicateAssign(t *testing.T) {
	ctx := context.Background()
	pk := protocol.PartitionKey{Topic: "test-topic", Partition: 0}
	objects := remote.NewMemoryStore()
	host := newFakeHost()

	coordinator, err := NewTaskCoordinator(newTestConfig(t), objects, host)
	require.NoError(t, err)
	require.NoError(t, coordinator.OnAssigned(ctx, []protocol.PartitionKey{pk}))

	session := coordinator.Session(pk)

	// 重复分配是空操作: 会话不变，没有第二次恢复
	require.NoError(t, coordinator.OnAssigned(ctx, []protocol.PartitionKey{pk}))
	assert.Same(t, session, coordinator.Session(pk))
	assert.Len(t, host.paused, 1)
}

func TestCoordinatorEmptyCommitIsNoop(t *testing.T) {
	ctx := context.Background()
	pk := protocol.PartitionKey{Topic: "test-topic", Partition: 0}
	objects := remote.NewMemoryStore()

	coordinator, err := NewTaskCoordinator(newTestConfig(t), objects, newFakeHost())
	require.NoError(t, err)
	require.NoError(t, coordinator.OnAssigned(ctx, []protocol.PartitionKey{pk}))

	// 没有缓冲任何记录，提交不产生任何对象
	require.NoError(t, coordinator.OnCommitRequested(ctx))
	assert.Equal(t, 0, objects.Size())
	assert.Equal(t, int64(0), coordinator.Session(pk).NextOffset())
}

func TestCoordinatorRetriableCommitFailure(t *testing.T) {
	ctx := context.Background()
	pk := protocol.PartitionKey{Topic: "test-topic", Partition: 0}
	objects := &flakyStore{MemoryStore: remote.NewMemoryStore()}
	cfg := newTestConfig(t)

	coordinator, err := NewTaskCoordinator(cfg, objects, newFakeHost())
	require.NoError(t, err)
	require.NoError(t, coordinator.OnAssigned(ctx, []protocol.PartitionKey{pk}))
	require.NoError(t, coordinator.OnRecordsDelivered(ctx, makeRecords("test-topic", 0, "a", "b", "c")))

	// 第一次上传失败: 错误可重试，会话停留在 Flushing
	objects.failNext = 1
	err = coordinator.OnCommitRequested(ctx)
	require.Error(t, err)
	assert.True(t, IsRetriable(err))
	assert.Equal(t, StateFlushing, coordinator.Session(pk).State())

	// Flushing 状态下不再接收新记录
	err = coordinator.OnRecordsDelivered(ctx, makeRecords("test-topic", 0, "d"))
	assert.Error(t, err)

	// 重试提交同一个块，结果和一次成功完全相同
	require.NoError(t, coordinator.OnCommitRequested(ctx))
	assert.Equal(t, StateActive, coordinator.Session(pk).State())
	assert.Equal(t, int64(3), coordinator.Session(pk).NextOffset())
	assert.Equal(t, 2, objects.Size())
}

func TestCoordinatorMultiplePartitions(t *testing.T) {
	ctx := context.Background()
	objects := remote.NewMemoryStore()
	pks := []protocol.PartitionKey{
		{Topic: "test-topic", Partition: 0},
		{Topic: "test-topic", Partition: 1},
	}

	coordinator, err := NewTaskCoordinator(newTestConfig(t), objects, newFakeHost())
	require.NoError(t, err)
	require.NoError(t, coordinator.OnAssigned(ctx, pks))
	assert.Equal(t, pks, coordinator.Assignment())

	// 混合批次按分区分组缓冲
	records := append(
		makeRecords("test-topic", 0, "p0-a", "p0-b"),
		makeRecords("test-topic", 1, "p1-a")...,
	)
	require.NoError(t, coordinator.OnRecordsDelivered(ctx, records))

	assert.Equal(t, int64(2), coordinator.Session(pks[0]).BufferedRecords())
	assert.Equal(t, int64(1), coordinator.Session(pks[1]).BufferedRecords())

	require.NoError(t, coordinator.OnCommitRequested(ctx))

	// 每个分区一个块，互不干扰
	assert.Equal(t, 4, objects.Size())
	assert.Equal(t, int64(2), coordinator.Session(pks[0]).NextOffset())
	assert.Equal(t, int64(1), coordinator.Session(pks[1]).NextOffset())
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrNoBucket)

	cfg.Bucket = "b"
	assert.ErrorIs(t, cfg.Validate(), ErrNoBufferDir)

	cfg.BufferDir = "/tmp/buffer"
	require.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.BlockSize, int64(0), "块大小回落到默认值")
}
