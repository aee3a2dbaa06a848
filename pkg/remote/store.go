package remote

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/store"
)

// Store 负责把已封存的块上传到对象存储，
// 以及在分区（重新）分配时从远端状态推导恢复偏移量
//
// 远端状态是恢复位置的唯一事实来源，
// 宿主传入的偏移量可能包含已撤销或过期的分区，永远不被信任
type Store struct {
	objects ObjectStore
	prefix  string
}

// NewStore 创建一个新的远端存储
func NewStore(objects ObjectStore, prefix string) *Store {
	return &Store{
		objects: objects,
		prefix:  prefix,
	}
}

// Commit 上传一个已封存的块（数据文件和索引文件），
// 返回下一个块必须使用的起始偏移量
//
// 每个对象的上传是原子的，但两个对象之间不是: 恢复时只承认
// 数据和索引都存在的块。上传失败不修改任何本地状态，
// 本地文件原样保留，重试会重新上传完全相同的内容，结果幂等
func (s *Store) Commit(ctx context.Context, dataFile, indexFile string, pk protocol.PartitionKey, startOffset int64) (int64, error) {
	dataKey := DataKey(s.prefix, pk, startOffset)
	indexKey := IndexKey(s.prefix, pk, startOffset)

	if err := s.objects.PutFile(ctx, dataKey, dataFile); err != nil {
		return 0, Retriable(err)
	}
	if err := s.objects.PutFile(ctx, indexKey, indexFile); err != nil {
		return 0, Retriable(err)
	}

	// 从刚写入的索引读取记录总数
	indexData, err := os.ReadFile(indexFile)
	if err != nil {
		return 0, fmt.Errorf("读取索引文件失败: %w", err)
	}
	entries, err := store.DecodeIndex(indexData)
	if err != nil {
		return 0, err
	}

	nextOffset := startOffset + store.TotalRecords(entries)
	log.Printf("提交块成功: 分区=%s 起始偏移量=%d 下一偏移量=%d", pk, startOffset, nextOffset)
	return nextOffset, nil
}

// ResolveResumeOffset 推导一个分区恢复写入时的起始偏移量
//
// 列出该分区的所有块对象，取数据和索引都存在的最大起始偏移量，
// 只下载它的索引并返回 起始偏移量+记录总数；
// 没有任何完整的块时返回 0
//
// 只有数据对象或只有索引对象的块是上次提交中断留下的残留，
// 跳过它，后续提交会在同一个起始偏移量上覆盖这两个对象
func (s *Store) ResolveResumeOffset(ctx context.Context, pk protocol.PartitionKey) (int64, error) {
	keys, err := s.objects.List(ctx, ChunkPrefix(s.prefix, pk))
	if err != nil {
		return 0, Retriable(err)
	}

	// 汇总每个起始偏移量对应的对象
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

	// 选取完整块中最大的起始偏移量
	latest := int64(-1)
	for offset, c := range chunks {
		if !c.hasData || !c.hasIndex {
			log.Printf("跳过不完整的块: 分区=%s 起始偏移量=%d", pk, offset)
			continue
		}
		if offset > latest {
			latest = offset
		}
	}
	if latest < 0 {
		return 0, nil
	}

	indexData, err := s.objects.Get(ctx, IndexKey(s.prefix, pk, latest))
	if err != nil {
		return 0, Retriable(err)
	}
	entries, err := store.DecodeIndex(indexData)
	if err != nil {
		return 0, fmt.Errorf("解析远端索引失败: 分区=%s 起始偏移量=%d: %w", pk, latest, err)
	}

	return latest + store.TotalRecords(entries), nil
}
