package network

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/sink"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/ut"
)

// Server 独立运行模式下的记录接收服务器
// 扮演宿主运行时的角色: 第一次出现的分区触发分配，
// 定时器驱动提交，所有对协调器的调用都经过互斥锁串行化，
// 保持核心要求的单线程调用约定
type Server struct {
	addr          string
	listener      net.Listener
	coordinator   *sink.TaskCoordinator
	flushInterval time.Duration

	mu   sync.Mutex // 串行化对协调器的所有调用
	done chan struct{}
}

// NewServer 创建新的服务器实例
func NewServer(addr string, flushInterval time.Duration) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("创建监听器失败: %w", err)
	}

	return &Server{
		addr:          addr,
		listener:      listener,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}, nil
}

// SetCoordinator 挂接任务协调器，必须在 Start 之前调用
// 协调器的宿主原语由服务器自身实现
func (s *Server) SetCoordinator(c *sink.TaskCoordinator) {
	s.coordinator = c
}

// Addr 返回实际监听的地址
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start 启动服务器
func (s *Server) Start() error {
	if s.coordinator == nil {
		return fmt.Errorf("没有挂接任务协调器")
	}

	go s.acceptLoop()
	go s.flushLoop()
	return nil
}

// Stop 停止服务器并丢弃所有本地缓冲
func (s *Server) Stop() error {
	close(s.done)
	s.listener.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("接受连接失败: %v", err)
				continue
			}
		}
		go s.handleConn(conn)
	}
}

// flushLoop 定时驱动提交
// 可重试错误只记录日志，下一个周期重新驱动同一轮提交
func (s *Server) flushLoop() {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.coordinator.OnCommitRequested(context.Background())
			s.mu.Unlock()

			if err != nil {
				if sink.IsRetriable(err) {
					log.Printf("提交失败，下个周期重试: %v", err)
				} else {
					log.Printf("提交遇到致命错误: %v", err)
				}
			}
		}
	}
}

// handleConn 处理客户端连接
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("读取请求失败: %v", err)
			}
			return
		}

		req, err := protocol.DecodeIngestRequest(payload)
		if err != nil {
			s.sendResponse(conn, &protocol.IngestResponse{Success: false, Error: err.Error()})
			continue
		}

		if err := s.deliver(req); err != nil {
			s.sendResponse(conn, &protocol.IngestResponse{Success: false, Error: err.Error()})
			continue
		}
		s.sendResponse(conn, &protocol.IngestResponse{Success: true})
	}
}

// deliver 把一批记录交给协调器
// 第一次出现的分区先触发分配
func (s *Server) deliver(req *protocol.IngestRequest) error {
	pk := protocol.PartitionKey{Topic: req.Topic, Partition: req.Partition}

	records := ut.Map(req.Records, func(r protocol.IngestRecord) *protocol.Record {
		rec := protocol.NewRecord(req.Topic, req.Partition, r.Key, r.Value)
		if r.Timestamp != 0 {
			rec.Timestamp = r.Timestamp
		}
		return rec
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coordinator.Session(pk) == nil {
		if err := s.coordinator.OnAssigned(context.Background(), []protocol.PartitionKey{pk}); err != nil {
			return err
		}
	}

	return s.coordinator.OnRecordsDelivered(context.Background(), records)
}

func (s *Server) sendResponse(conn net.Conn, resp *protocol.IngestResponse) {
	data, err := protocol.EncodeIngestResponse(resp)
	if err != nil {
		log.Printf("序列化响应失败: %v", err)
		return
	}
	if err := WriteFrame(conn, data); err != nil {
		log.Printf("发送响应失败: %v", err)
	}
}

// 独立运行模式下没有可控的投递游标，
// 上游客户端负责在重新连接后从恢复偏移量开始重发

// Pause 暂停投递，独立运行模式下为空操作
func (s *Server) Pause(pk protocol.PartitionKey) {}

// Resume 恢复投递，独立运行模式下为空操作
func (s *Server) Resume(pk protocol.PartitionKey) {}

// ResetOffset 记录恢复偏移量，供上游客户端查询日志后重发
func (s *Server) ResetOffset(pk protocol.PartitionKey, offset int64) {
	log.Printf("分区 %s 的投递游标重置到 %d", pk, offset)
}
