package remote

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/store"
)

// 远端键的布局: prefix/topic/partition/<起始偏移量补零到20位>.gz 和 .index
// 偏移量补零后字典序等于数值序，列出对象即可按偏移量排序

// ChunkPrefix 返回一个分区所有块对象的键前缀
func ChunkPrefix(prefix string, pk protocol.PartitionKey) string {
	base := path.Join(pk.Topic, strconv.Itoa(pk.Partition))
	if prefix != "" {
		base = path.Join(prefix, base)
	}
	return base + "/"
}

// DataKey 返回块数据对象的键
func DataKey(prefix string, pk protocol.PartitionKey, startOffset int64) string {
	return fmt.Sprintf("%s%020d%s", ChunkPrefix(prefix, pk), startOffset, store.DataFileSuffix)
}

// IndexKey 返回块索引对象的键
func IndexKey(prefix string, pk protocol.PartitionKey, startOffset int64) string {
	return fmt.Sprintf("%s%020d%s", ChunkPrefix(prefix, pk), startOffset, store.IndexFileSuffix)
}

// ParseChunkKey 从对象键解析出起始偏移量和对象类型
func ParseChunkKey(key string) (startOffset int64, isIndex bool, ok bool) {
	name := path.Base(key)
	switch {
	case strings.HasSuffix(name, store.IndexFileSuffix):
		isIndex = true
		name = strings.TrimSuffix(name, store.IndexFileSuffix)
	case strings.HasSuffix(name, store.DataFileSuffix):
		name = strings.TrimSuffix(name, store.DataFileSuffix)
	default:
		return 0, false, false
	}

	offset, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return 0, false, false
	}
	return offset, isIndex, true
}
