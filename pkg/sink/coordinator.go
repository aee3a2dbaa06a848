package sink

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/codec"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/metrics"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/remote"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/ut"
)

// TaskCoordinator 把宿主运行时的生命周期调用翻译为会话操作
// 独占持有分区到会话的映射，保证没有活跃会话的分区
// 永远不会被写入
//
// 宿主保证所有入口在同一个逻辑线程上严格串行调用，
// 核心不做任何内部并发，正确性建立在调用顺序之上
type TaskCoordinator struct {
	cfg      *Config
	remote   *remote.Store
	host     Host
	factory  codec.Factory
	sessions map[protocol.PartitionKey]*PartitionSession
	metrics  *metrics.SinkMetrics
}

// NewTaskCoordinator 创建一个新的任务协调器
// 配置错误在这里就是致命的，任务不会运行
func NewTaskCoordinator(cfg *Config, objects remote.ObjectStore, host Host) (*TaskCoordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory, err := codec.NewFactory(cfg.Format)
	if err != nil {
		return nil, err
	}

	return &TaskCoordinator{
		cfg:      cfg,
		remote:   remote.NewStore(objects, cfg.Prefix),
		host:     host,
		factory:  factory,
		sessions: make(map[protocol.PartitionKey]*PartitionSession),
	}, nil
}

// SetMetrics 挂接运行指标，可选
func (c *TaskCoordinator) SetMetrics(m *metrics.SinkMetrics) {
	c.metrics = m
}

// OnAssigned 处理分区分配
// 为每个新分配的分区创建会话并执行恢复；
// 已经有活跃会话的分区是空操作
func (c *TaskCoordinator) OnAssigned(ctx context.Context, pks []protocol.PartitionKey) error {
	for _, pk := range pks {
		if _, ok := c.sessions[pk]; ok {
			log.Printf("分区 %s 已有活跃会话，忽略重复分配", pk)
			continue
		}

		log.Printf("分配新分区 %s，创建归档会话", pk)
		session := newPartitionSession(pk, c.cfg, c.remote, c.host, c.factory)
		if err := session.Recover(ctx); err != nil {
			return err
		}
		c.sessions[pk] = session
	}
	return nil
}

// OnRevoked 处理分区撤销
// 关闭对应会话，丢弃本地缓冲，未提交的记录依赖上游重新投递
func (c *TaskCoordinator) OnRevoked(pks []protocol.PartitionKey) error {
	for _, pk := range pks {
		session, ok := c.sessions[pk]
		if !ok {
			continue
		}

		log.Printf("撤销分区 %s，丢弃本地缓冲", pk)
		delete(c.sessions, pk)
		if err := session.Close(); err != nil {
			return err
		}
	}
	return nil
}

// OnRecordsDelivered 处理宿主投递的一批记录
// 按分区分组后交给对应会话缓冲，不触发任何提交
// 投递到没有活跃会话的分区说明宿主和核心之间的协调出了问题，
// 按致命错误处理
func (c *TaskCoordinator) OnRecordsDelivered(ctx context.Context, records []*protocol.Record) error {
	grouped := ut.GroupBy(records, func(r *protocol.Record) protocol.PartitionKey {
		return r.PartitionKey()
	})

	for pk, batch := range grouped {
		session, ok := c.sessions[pk]
		if !ok {
			return fmt.Errorf("%w: 收到 %d 条投递到分区 %s 的记录", ErrPartitionNotAssigned, len(batch), pk)
		}

		if err := session.AcceptBatch(batch); err != nil {
			return err
		}

		if c.metrics != nil {
			c.metrics.PutRecords.WithLabelValues(pk.Topic, strconv.Itoa(pk.Partition)).Add(float64(len(batch)))
		}
	}
	return nil
}

// OnCommitRequested 处理提交请求
// 依次提交所有会话缓冲的块，空块是空操作
// 可重试错误直接返回，宿主的重试机制会重新驱动同一轮提交
func (c *TaskCoordinator) OnCommitRequested(ctx context.Context) error {
	started := time.Now()

	for _, pk := range c.assignedSorted() {
		session := c.sessions[pk]
		if session.BufferedRecords() == 0 && session.State() == StateActive {
			continue
		}

		if err := session.Flush(ctx); err != nil {
			if c.metrics != nil {
				c.metrics.CommitFailures.Inc()
			}
			return err
		}

		if c.metrics != nil {
			c.metrics.ChunksCommitted.WithLabelValues(pk.Topic, strconv.Itoa(pk.Partition)).Inc()
		}
		log.Printf("分区 %s 提交完成，下一偏移量 %d", pk, session.NextOffset())
	}

	if c.metrics != nil {
		c.metrics.FlushDuration.Observe(time.Since(started).Seconds())
	}
	return nil
}

// Assignment 返回当前持有会话的分区
func (c *TaskCoordinator) Assignment() []protocol.PartitionKey {
	return c.assignedSorted()
}

// Session 返回指定分区的会话，没有时返回 nil
func (c *TaskCoordinator) Session(pk protocol.PartitionKey) *PartitionSession {
	return c.sessions[pk]
}

// Close 终止任务
// 丢弃所有会话的本地缓冲，不做任何上传
func (c *TaskCoordinator) Close() error {
	for pk, session := range c.sessions {
		if err := session.Close(); err != nil {
			log.Printf("关闭会话失败: 分区=%s: %v", pk, err)
		}
		delete(c.sessions, pk)
	}
	return nil
}

// assignedSorted 返回按名称排序的分区列表，保证遍历顺序稳定
func (c *TaskCoordinator) assignedSorted() []protocol.PartitionKey {
	pks := ut.Keys(c.sessions)
	sort.Slice(pks, func(i, j int) bool {
		if pks[i].Topic != pks[j].Topic {
			return pks[i].Topic < pks[j].Topic
		}
		return pks[i].Partition < pks[j].Partition
	})
	return pks
}
