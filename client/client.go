package client

import (
	"fmt"
	"net"
	"sync"

	"github.com/mikekamornikov/kafka-connect-s3/pkg/network"
	"github.com/mikekamornikov/kafka-connect-s3/pkg/protocol"
)

// Client 归档服务的接入客户端
// 把记录发送到独立运行的归档服务器，请求和响应一一对应
//
// 服务器只承认已上传到对象存储的记录，发送成功不代表已归档；
// 客户端重连后应该根据服务器日志中的恢复偏移量重发未归档的记录
type Client struct {
	conn net.Conn
	addr string
	mu   sync.Mutex
}

// NewClient 创建一个新的客户端
func NewClient(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("连接服务器失败: %w", err)
	}

	return &Client{
		conn: conn,
		addr: addr,
	}, nil
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send 发送一批记录到指定分区
func (c *Client) Send(topic string, partition int, records []protocol.IngestRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := &protocol.IngestRequest{
		Topic:     topic,
		Partition: partition,
		Records:   records,
	}

	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("发送记录失败: %s", resp.Error)
	}
	return nil
}

// Publish 发送单条记录，Send 的便捷封装
func (c *Client) Publish(topic string, partition int, key, value []byte) error {
	return c.Send(topic, partition, []protocol.IngestRecord{
		{Key: key, Value: value},
	})
}

// roundTrip 发送请求并读取对应的响应
func (c *Client) roundTrip(req *protocol.IngestRequest) (*protocol.IngestResponse, error) {
	payload, err := protocol.EncodeIngestRequest(req)
	if err != nil {
		return nil, fmt.Errorf("编码请求失败: %w", err)
	}

	if err := network.WriteFrame(c.conn, payload); err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}

	data, err := network.ReadFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	resp, err := protocol.DecodeIngestResponse(data)
	if err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return resp, nil
}
