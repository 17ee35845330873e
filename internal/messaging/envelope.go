package messaging

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"atsassist/pkg/domain"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrClosed         = errors.New("transport closed")
)

// Notification 广播给标签页的侧边栏状态通知
type Notification struct {
	Type   domain.MessageType `json:"type"`
	IsOpen bool               `json:"isOpen"`
}

// ParseMessage 解析消息 JSON，type 必须为非空字符串，payload 保留原文
func ParseMessage(raw []byte) (domain.Message, error) {
	if !gjson.ValidBytes(raw) {
		return domain.Message{}, fmt.Errorf("%w: malformed json", ErrInvalidMessage)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return domain.Message{}, fmt.Errorf("%w: expected object", ErrInvalidMessage)
	}
	t := root.Get("type")
	if t.Type != gjson.String || t.String() == "" {
		return domain.Message{}, fmt.Errorf("%w: type is required", ErrInvalidMessage)
	}

	msg := domain.Message{Type: domain.MessageType(t.String())}
	if p := root.Get("payload"); p.Exists() && p.Type != gjson.Null {
		msg.Payload = json.RawMessage(p.Raw)
	}
	return msg, nil
}

// NewMessage 构造消息，payload 为 nil 时不携带负载
func NewMessage(t domain.MessageType, payload any) (domain.Message, error) {
	msg := domain.Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return msg, fmt.Errorf("encode payload: %w", err)
	}
	msg.Payload = raw
	return msg, nil
}

// Decode 将响应数据解码为具体类型，失败响应转换为 error
func Decode[T any](resp domain.Response) (T, error) {
	var out T
	if !resp.Success {
		return out, errors.New(resp.Error)
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return out, fmt.Errorf("encode response data: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode response data: %w", err)
	}
	return out, nil
}

// hasPayload 判断负载是否存在且非 null
func hasPayload(p json.RawMessage) bool {
	if len(p) == 0 {
		return false
	}
	return gjson.ParseBytes(p).Type != gjson.Null
}
