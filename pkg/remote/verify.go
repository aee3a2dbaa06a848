package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kevwan/mapreduce/v2"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/store"
)

// PartitionReport 一个分区远端布局的校验结果
type PartitionReport struct {
	Partition  protocol.PartitionKey
	ChunkCount int   // 完整块的数量
	NextOffset int64 // 高水位: 最后一个块的结束偏移量
}

// VerifyPartition 校验一个分区的远端布局
// 按起始偏移量排序的完整块必须首尾相接地覆盖从最早保留
// 偏移量到高水位的整个区间，既没有空洞也没有重叠
func (s *Store) VerifyPartition(ctx context.Context, pk protocol.PartitionKey) (*PartitionReport, error) {
	keys, err := s.objects.List(ctx, ChunkPrefix(s.prefix, pk))
	if err != nil {
		return nil, Retriable(err)
	}

	// 汇总完整的块
	type chunkObjects struct {
		hasData  bool
		hasIndex bool
	}
	chunks := make(map[int64]*chunkObjects)
	for _, key := range keys {
		offset, isIndex, ok := ParseChunkKey(key)
		if !ok {
			continue
		}
		c, exists := chunks[offset]
		if !exists {
			c = &chunkObjects{}
			chunks[offset] = c
		}
		if isIndex {
			c.hasIndex = true
		} else {
			c.hasData = true
		}
	}

	var offsets []int64
	for offset, c := range chunks {
		if c.hasData && c.hasIndex {
			offsets = append(offsets, offset)
		}
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	report := &PartitionReport{Partition: pk}
	if len(offsets) == 0 {
		return report, nil
	}

	expected := offsets[0]
	for _, offset := range offsets {
		if offset > expected {
			return nil, fmt.Errorf("分区 %s 偏移量存在空洞: 期望 %d, 实际 %d", pk, expected, offset)
		}
		if offset < expected {
			return nil, fmt.Errorf("分区 %s 偏移量存在重叠: 期望 %d, 实际 %d", pk, expected, offset)
		}

		indexData, err := s.objects.Get(ctx, IndexKey(s.prefix, pk, offset))
		if err != nil {
			return nil, Retriable(err)
		}
		entries, err := store.DecodeIndex(indexData)
		if err != nil {
			return nil, fmt.Errorf("解析远端索引失败: 分区=%s 起始偏移量=%d: %w", pk, offset, err)
		}

		expected = offset + store.TotalRecords(entries)
		report.ChunkCount++
	}
	report.NextOffset = expected

	return report, nil
}

// VerifyPartitions 并行校验多个分区的远端布局
// 校验是只读的离线操作，不参与写入路径的单线程约定
func (s *Store) VerifyPartitions(ctx context.Context, pks []protocol.PartitionKey) ([]*PartitionReport, error) {
	reports := make([]*PartitionReport, len(pks))
	var mu sync.Mutex

	fns := make([]func() error, len(pks))
	for i, pk := range pks {
		i, pk := i, pk
		fns[i] = func() error {
			report, err := s.VerifyPartition(ctx, pk)
			if err != nil {
				return err
			}
			mu.Lock()
			reports[i] = report
			mu.Unlock()
			return nil
		}
	}

	if err := mapreduce.Finish(fns...); err != nil {
		return nil, err
	}
	return reports, nil
}
