package sink

import (
	"context"
	"fmt"
	"log"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/codec"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/remote"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/store"
)

// State 会话的生命周期状态
type State int

const (
	// StateRecovering 正在从远端状态恢复写入位置
	StateRecovering State = iota
	// StateActive 正常接收记录
	StateActive
	// StateFlushing 上次提交因可重试错误中断，等待重试
	StateFlushing
	// StateClosed 会话已终止
	StateClosed
)

// PartitionSession 单个分区的归档会话
// 组合一个块写入器和一个块编码器，驱动恢复、缓冲和提交
// 会话由 TaskCoordinator 独占持有，宿主严格串行调用，无需加锁
type PartitionSession struct {
	pk      protocol.PartitionKey
	cfg     *Config
	remote  *remote.Store
	host    Host
	factory codec.Factory

	state      State
	writer     *store.BlockWriter
	codec      codec.ChunkCodec
	nextOffset int64
}

// newPartitionSession 创建一个处于恢复状态的会话
func newPartitionSession(pk protocol.PartitionKey, cfg *Config, rs *remote.Store, host Host, factory codec.Factory) *PartitionSession {
	return &PartitionSession{
		pk:      pk,
		cfg:     cfg,
		remote:  rs,
		host:    host,
		factory: factory,
		state:   StateRecovering,
	}
}

// Recover 从远端状态恢复写入位置
// 暂停投递，向对象存储查询恢复偏移量，把宿主的投递游标
// 重置到该偏移量，在该偏移量上开启新块，然后恢复投递
//
// 查询失败是可重试的，会话停留在恢复状态，重新调用即可
func (s *PartitionSession) Recover(ctx context.Context) error {
	if s.state != StateRecovering {
		return fmt.Errorf("%w: 分区 %s 状态 %d", ErrNotActive, s.pk, s.state)
	}

	s.host.Pause(s.pk)

	offset, err := s.remote.ResolveResumeOffset(ctx, s.pk)
	if err != nil {
		return fmt.Errorf("推导恢复偏移量失败: 分区=%s: %w", s.pk, err)
	}

	log.Printf("恢复分区 %s, 起始偏移量 %d", s.pk, offset)

	if err := s.openWriter(offset); err != nil {
		return err
	}

	s.host.ResetOffset(s.pk, offset)
	s.host.Resume(s.pk)
	s.state = StateActive
	return nil
}

// openWriter 在指定偏移量上开启新的块写入器和编码器
func (s *PartitionSession) openWriter(offset int64) error {
	writer, err := store.NewBlockWriter(s.pk.String(), s.cfg.BufferDir, offset, s.cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("创建块写入器失败: 分区=%s 偏移量=%d: %w", s.pk, offset, err)
	}
	s.writer = writer
	s.codec = s.factory.New(s.pk, offset)
	s.nextOffset = offset
	return nil
}

// AcceptBatch 编码并缓冲一批记录，不触发任何提交
func (s *PartitionSession) AcceptBatch(records []*protocol.Record) error {
	if s.state == StateClosed {
		return fmt.Errorf("%w: 分区 %s", ErrSessionClosed, s.pk)
	}
	if s.state != StateActive {
		return fmt.Errorf("%w: 分区 %s 状态 %d", ErrNotActive, s.pk, s.state)
	}
	if len(records) == 0 {
		return nil
	}

	// 编码失败说明数据不符合约定，必须中止写入，不能静默丢弃
	data, err := s.codec.Encode(records)
	if err != nil {
		return fmt.Errorf("编码记录失败: 分区=%s: %w", s.pk, err)
	}

	if err := s.writer.Append(data, len(records)); err != nil {
		return fmt.Errorf("缓冲记录失败: 分区=%s: %w", s.pk, err)
	}

	return nil
}

// Flush 提交当前缓冲的块
// 块为空时是空操作；否则封存编码器和写入器，上传数据和索引，
// 删除本地文件，在返回的下一偏移量上开启新块
//
// 上传因可重试错误失败时，已封存的本地文件原样保留，
// 会话停留在 Flushing 状态，下次调用直接重试同一次提交
func (s *PartitionSession) Flush(ctx context.Context) error {
	switch s.state {
	case StateActive:
		if s.writer.IsEmpty() {
			return nil
		}

		// 封存编码器，尾部字节属于最后一个段
		trailer, err := s.codec.Close()
		if err != nil {
			return fmt.Errorf("封存编码器失败: 分区=%s: %w", s.pk, err)
		}
		if len(trailer) > 0 {
			if err := s.writer.Append(trailer, 0); err != nil {
				return fmt.Errorf("写入块尾部失败: 分区=%s: %w", s.pk, err)
			}
		}

		if _, _, err := s.writer.Finalize(); err != nil {
			return fmt.Errorf("封存块失败: 分区=%s: %w", s.pk, err)
		}
		s.state = StateFlushing

	case StateFlushing:
		// 上次提交被可重试错误中断，直接重试

	default:
		return fmt.Errorf("%w: 分区 %s 状态 %d", ErrNotActive, s.pk, s.state)
	}

	next, err := s.remote.Commit(ctx, s.writer.DataFilePath(), s.writer.IndexFilePath(), s.pk, s.writer.StartOffset())
	if err != nil {
		return fmt.Errorf("提交块失败: 分区=%s 起始偏移量=%d: %w", s.pk, s.writer.StartOffset(), err)
	}

	// 提交成功后删除本地文件，开启新块
	if err := s.writer.Discard(); err != nil {
		return fmt.Errorf("删除已提交的本地文件失败: 分区=%s: %w", s.pk, err)
	}
	if err := s.openWriter(next); err != nil {
		return err
	}
	s.state = StateActive
	return nil
}

// Close 终止会话
// 无条件丢弃本地缓冲: 自上次成功提交以来接收的记录不会被上传，
// 依赖上游在重新分配后重新投递，因为恢复总是从远端状态
// 重新推导偏移量，不依赖任何本地缓存的位置
func (s *PartitionSession) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed

	if s.writer == nil {
		return nil
	}
	if err := s.writer.Discard(); err != nil {
		return fmt.Errorf("丢弃本地缓冲失败: 分区=%s: %w", s.pk, err)
	}
	return nil
}

// State 返回会话当前状态
func (s *PartitionSession) State() State {
	return s.state
}

// NextOffset 返回当前块的起始偏移量
func (s *PartitionSession) NextOffset() int64 {
	return s.nextOffset
}

// BufferedRecords 返回当前块缓冲的记录数
func (s *PartitionSession) BufferedRecords() int64 {
	if s.writer == nil {
		return 0
	}
	return s.writer.RecordCount()
}
