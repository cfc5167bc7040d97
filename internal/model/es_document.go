package model

import "time"

// SessionDocument 定义了存储在 Elasticsearch 中的会话全文文档。
type SessionDocument struct {
	SessionID uint      `json:"session_id"`
	UserID    uint      `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// SessionSearchHit 定义了返回给前端的历史搜索结果结构。
type SessionSearchHit struct {
	SessionID uint      `json:"sessionId"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	Score     float64   `json:"score"`
	EndedAt   time.Time `json:"endedAt"`
}
