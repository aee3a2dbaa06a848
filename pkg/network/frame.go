package network

import (
	"encoding/binary"
	"fmt"
	"io"
)

// 帧格式: 4字节大端长度前缀 + 内容
const (
	// MaxFrameSize 单帧内容的最大字节数 - 16MB
	MaxFrameSize = 16 * 1024 * 1024
)

// ReadFrame 读取一个完整的帧
func ReadFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}

	frameLen := binary.BigEndian.Uint32(lenBuf)
	if frameLen > MaxFrameSize {
		return nil, fmt.Errorf("帧长度超过上限: %d", frameLen)
	}

	buf := make([]byte, frameLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("读取帧内容失败: %w", err)
	}
	return buf, nil
}

// WriteFrame 写入一个完整的帧
func WriteFrame(w io.Writer, payload []byte) error {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))

	if _, err := w.Write(lenBuf); err != nil {
		return fmt.Errorf("发送帧长度失败: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("发送帧内容失败: %w", err)
	}
	return nil
}
