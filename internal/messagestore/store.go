// Package messagestore 保存当前聊天界面展示的消息列表，并在每次修改后整体写回本地存储。
package messagestore

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dentgo-go/internal/localstore"
	"dentgo-go/pkg/log"

	"github.com/google/uuid"
)

// StorageKey 是消息列表在本地存储中的键。
const StorageKey = "dentgo.messages"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 是客户端生成的一条消息，ID 与服务端消息无关。
type ChatMessage struct {
	ID        string   `json:"id" yaml:"id"`
	Role      string   `json:"role" yaml:"role"`
	Content   string   `json:"content" yaml:"content"`
	Timestamp int64    `json:"timestamp" yaml:"timestamp"`
	Images    []string `json:"images,omitempty" yaml:"images,omitempty"`
	// Error 标记请求失败时追加的提示气泡
	Error bool `json:"error,omitempty" yaml:"error,omitempty"`
	// Greeting 标记仅用于展示的欢迎语
	Greeting bool `json:"greeting,omitempty" yaml:"greeting,omitempty"`
}

// NewMessage 创建一条带新 ID 与当前时间戳的消息。
func NewMessage(role, content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (m ChatMessage) clone() ChatMessage {
	if m.Images != nil {
		m.Images = append([]string(nil), m.Images...)
	}
	return m
}

// Patch 描述 ReplaceLast 的局部更新，nil 字段保持不变。
type Patch struct {
	Content   *string
	Timestamp *int64
	Images    []string
	Error     *bool
}

// Store 是线程安全的消息列表。
type Store struct {
	mu       sync.Mutex
	storage  localstore.Storage
	messages []ChatMessage
}

// New 从本地存储恢复消息列表。存储中的内容无法解析时从空列表开始。
func New(storage localstore.Storage) (*Store, error) {
	s := &Store{storage: storage}
	raw, ok, err := storage.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.messages); err != nil {
			log.Warnf("messagestore: 丢弃无法解析的本地消息, error: %v", err)
			s.messages = nil
		}
	}
	return s, nil
}

// Add 追加一条消息。
func (s *Store) Add(msg ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(copyMessages(s.messages), msg.clone())
	return s.commit(next)
}

// ReplaceLast 将 patch 合并进最后一条消息，列表为空时不做任何事。
func (s *Store) ReplaceLast(patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	next := copyMessages(s.messages)
	last := &next[len(next)-1]
	if patch.Content != nil {
		last.Content = *patch.Content
	}
	if patch.Timestamp != nil {
		last.Timestamp = *patch.Timestamp
	}
	if patch.Images != nil {
		last.Images = append([]string(nil), patch.Images...)
	}
	if patch.Error != nil {
		last.Error = *patch.Error
	}
	return s.commit(next)
}

// Reset 清空列表。
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(nil)
}

// Load 用 msgs 的深拷贝整体替换列表。
func (s *Store) Load(msgs []ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(copyMessages(msgs))
}

// Messages 返回列表的深拷贝。
func (s *Store) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMessages(s.messages)
}

// Len 返回消息数量。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// commit 先写入存储，成功后才替换内存中的列表。
func (s *Store) commit(next []ChatMessage) error {
	list := next
	if list == nil {
		list = []ChatMessage{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	if err := s.storage.Set(StorageKey, string(raw)); err != nil {
		return fmt.Errorf("failed to persist messages: %w", err)
	}
	s.messages = next
	return nil
}

func copyMessages(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.clone()
	}
	return out
}
