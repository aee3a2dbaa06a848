package protocol

import (
	"encoding/json"
	"fmt"
)

// IngestRecord 表示通过网络投递的一条记录
type IngestRecord struct {
	Key       []byte `json:"key,omitempty"`
	Value     []byte `json:"value"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// IngestRequest 表示一批投递到同一个分区的记录
type IngestRequest struct {
	Topic     string         `json:"topic"`
	Partition int            `json:"partition"`
	Records   []IngestRecord `json:"records"`
}

// IngestResponse 投递请求的响应
type IngestResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// EncodeIngestRequest 序列化投递请求
func EncodeIngestRequest(req *IngestRequest) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeIngestRequest 反序列化投递请求
func DecodeIngestRequest(data []byte) (*IngestRequest, error) {
	var req IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("解析投递请求失败: %w", err)
	}
	return &req, nil
}

// EncodeIngestResponse 序列化投递响应
func EncodeIngestResponse(resp *IngestResponse) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeIngestResponse 反序列化投递响应
func DecodeIngestResponse(data []byte) (*IngestResponse, error) {
	var resp IngestResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("解析投递响应失败: %w", err)
	}
	return &resp, nil
}
