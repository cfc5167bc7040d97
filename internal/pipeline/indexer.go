// Package pipeline 定义了会话结束后的异步索引流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dentgo-go/internal/model"
	"dentgo-go/internal/repository"
	"dentgo-go/pkg/log"
	"dentgo-go/pkg/tasks"
)

// ErrSessionNotEnded 表示任务指向的会话尚未结束，通常是消息先于数据库提交到达。
var ErrSessionNotEnded = errors.New("session has not ended yet")

// DocumentIndexer 把会话文档写入搜索引擎。
type DocumentIndexer interface {
	IndexSession(ctx context.Context, doc model.SessionDocument) error
}

// SessionIndexer 实现 kafka.TaskProcessor。
type SessionIndexer struct {
	chatRepo repository.ChatRepository
	index    DocumentIndexer
}

// NewSessionIndexer 创建一个新的 SessionIndexer 实例。
func NewSessionIndexer(chatRepo repository.ChatRepository, index DocumentIndexer) *SessionIndexer {
	return &SessionIndexer{chatRepo: chatRepo, index: index}
}

// Process 读取会话全文并写入 Elasticsearch。
func (p *SessionIndexer) Process(ctx context.Context, task tasks.SessionIndexTask) error {
	log.Infof("[SessionIndexer] 开始索引会话, SessionID: %d, UserID: %d", task.SessionID, task.UserID)

	// 1. 读取会话与消息
	session, err := p.chatRepo.FindSession(task.SessionID)
	if err != nil {
		return fmt.Errorf("读取会话失败: %w", err)
	}
	if session.UserID != task.UserID {
		// 用户与会话不匹配的任务没有重试价值
		log.Warnf("[SessionIndexer] 任务用户与会话不匹配, 跳过, SessionID: %d", task.SessionID)
		return nil
	}
	if !session.IsEnded() {
		return ErrSessionNotEnded
	}

	// 2. 组装文档
	doc := BuildDocument(session)
	if doc.Title == "" {
		doc.Title = task.Title
	}

	// 3. 写入索引
	if err := p.index.IndexSession(ctx, doc); err != nil {
		log.Errorf("[SessionIndexer] 写入索引失败, SessionID: %d, Error: %v", task.SessionID, err)
		return fmt.Errorf("写入索引失败: %w", err)
	}
	log.Infof("[SessionIndexer] 会话索引完成, SessionID: %d, 消息数: %d", task.SessionID, len(session.Messages))
	return nil
}

// BuildDocument 把会话转换为搜索文档，消息按 "角色: 内容" 逐行拼接。
func BuildDocument(session *model.ChatSession) model.SessionDocument {
	var b strings.Builder
	for i, m := range session.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		role := "Dentgo"
		if m.Role == model.MessageRoleUser {
			role = "You"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}

	doc := model.SessionDocument{
		SessionID: session.ID,
		UserID:    session.UserID,
		Content:   b.String(),
		StartedAt: session.StartedAt,
	}
	if session.Title != nil {
		doc.Title = *session.Title
	}
	if session.EndedAt != nil {
		doc.EndedAt = *session.EndedAt
	}
	return doc
}
