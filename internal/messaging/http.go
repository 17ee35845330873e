package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"atsassist/internal/ctxkeys"
	"atsassist/internal/logger"
	"atsassist/pkg/domain"
)

const (
	// TraceHeader 请求追踪头
	TraceHeader = "X-Trace-Id"

	messagePath    = "/message"
	healthPath     = "/healthz"
	maxMessageSize = 1 << 20
)

// NewHTTPHandler 将 HTTP 请求转交给发送端，供其他进程中的上下文访问后台服务
func NewHTTPHandler(s Sender, l logger.Logger) http.Handler {
	if l == nil {
		l = logger.NewNop()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc(messagePath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeResponse(w, http.StatusMethodNotAllowed, domain.Fail("method not allowed"))
			return
		}
		ctx := ctxkeys.WithTraceID(r.Context(), r.Header.Get(TraceHeader))
		w.Header().Set(TraceHeader, ctxkeys.TraceID(ctx))

		body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize+1))
		if err != nil {
			writeResponse(w, http.StatusBadRequest, domain.Fail("read body: "+err.Error()))
			return
		}
		if len(body) > maxMessageSize {
			writeResponse(w, http.StatusRequestEntityTooLarge, domain.Fail("message too large"))
			return
		}
		msg, err := ParseMessage(body)
		if err != nil {
			writeResponse(w, http.StatusBadRequest, domain.Fail(err.Error()))
			return
		}

		resp, err := s.SendRequest(ctx, msg)
		if err != nil {
			l.Err(err, "转发消息失败", "traceId", ctxkeys.TraceID(ctx), "type", string(msg.Type))
			writeResponse(w, http.StatusServiceUnavailable, domain.Fail(err.Error()))
			return
		}
		writeResponse(w, http.StatusOK, resp)
	})
	return mux
}

func writeResponse(w http.ResponseWriter, status int, resp domain.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// HTTPClient 通过 HTTP 向后台服务发送消息
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient 创建客户端，baseURL 可省略协议
func NewHTTPClient(baseURL string, c *http.Client) *HTTPClient {
	if c == nil {
		c = &http.Client{Timeout: 10 * time.Second}
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), client: c}
}

// SendRequest 发送消息；服务端返回的失败响应不视为错误
func (c *HTTPClient) SendRequest(ctx context.Context, msg domain.Message) (domain.Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return domain.Response{}, fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagePath, bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := ctxkeys.TraceID(ctx); id != "" {
		req.Header.Set(TraceHeader, id)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return domain.Response{}, fmt.Errorf("send message: %w", err)
	}
	defer res.Body.Close()

	var resp domain.Response
	if err := json.NewDecoder(io.LimitReader(res.Body, maxMessageSize)).Decode(&resp); err != nil {
		return domain.Response{}, fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode >= http.StatusInternalServerError && !resp.Success {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// Ping 检查服务是否在线
func (c *HTTPClient) Ping(ctx context.Context) error {
	msg := domain.Message{Type: domain.MessagePing}
	resp, err := c.SendRequest(ctx, msg)
	if err != nil {
		return err
	}
	if s, _ := resp.Data.(string); !resp.Success || s != "pong" {
		return fmt.Errorf("unexpected ping response: %+v", resp)
	}
	return nil
}
