// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "fmt"

// SessionIndexTask 在会话结束后发布，驱动全文索引。
type SessionIndexTask struct {
	SessionID uint   `json:"session_id"`
	UserID    uint   `json:"user_id"`
	Title     string `json:"title,omitempty"`
}

// Key 返回任务的唯一标识，用于消息 key 和失败计数。
func (t SessionIndexTask) Key() string {
	return fmt.Sprintf("session:%d", t.SessionID)
}
