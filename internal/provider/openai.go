// Package provider streams model output into the edit engine. It is the only
// component that talks HTTP; the engine itself is fed through
// chat.StreamHandler.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"codestream/internal/chat"
	"codestream/internal/config"
)

// Client 基于 go-openai SDK 的流式客户端
// Client is a streaming client over the go-openai SDK. Any OpenAI-compatible
// endpoint works via base_url.
type Client struct {
	client *openai.Client
	model  string
	mu     sync.RWMutex
}

func NewClient(cfg config.ProviderConfig) *Client {
	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		sdkCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	sdkCfg.HTTPClient = httpClient

	return &Client{
		client: openai.NewClientWithConfig(sdkCfg),
		model:  cfg.Model,
	}
}

func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Client) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is empty")
	}
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
	return nil
}

// StreamEdits 发送一次补全请求，把文本分片按到达顺序交给 handler，流结束时
// 触发 OnMessageComplete。
// StreamEdits sends one completion request, hands text fragments to the
// handler in arrival order, and fires OnMessageComplete at end of stream.
func (c *Client) StreamEdits(ctx context.Context, messages []chat.Message, handler chat.StreamHandler) error {
	req := openai.ChatCompletionRequest{
		Model:  c.Model(),
		Stream: true,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
			Name:    m.Name,
		})
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			handler.OnChunk(delta, false)
		}
	}

	handler.OnMessageComplete()
	return nil
}
