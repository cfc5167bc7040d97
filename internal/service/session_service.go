package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dentgo-go/internal/model"
	"dentgo-go/internal/repository"
	"dentgo-go/pkg/log"
	"dentgo-go/pkg/tasks"

	"gorm.io/gorm"
)

const searchResultSize = 20

// TaskPublisher 发布会话索引任务。
type TaskPublisher interface {
	PublishSessionTask(ctx context.Context, task tasks.SessionIndexTask) error
}

// SessionSearcher 是会话全文索引的查询端。
type SessionSearcher interface {
	SearchSessions(ctx context.Context, userID uint, query string, size int) ([]model.SessionSearchHit, error)
	DeleteUserSessions(ctx context.Context, userID uint) error
}

// SessionService 定义了会话历史相关的业务操作。
type SessionService interface {
	List(userID uint) ([]model.ChatSession, error)
	Get(userID, sessionID uint) (*model.ChatSession, error)
	End(ctx context.Context, userID, sessionID uint, title *string) (*model.ChatSession, error)
	Search(ctx context.Context, userID uint, query string) ([]model.SessionSearchHit, error)
}

type sessionService struct {
	chatRepo  repository.ChatRepository
	publisher TaskPublisher
	searcher  SessionSearcher
	now       func() time.Time
}

// NewSessionService 创建一个新的 SessionService 实例。publisher 与 searcher 可以为 nil。
func NewSessionService(chatRepo repository.ChatRepository, publisher TaskPublisher, searcher SessionSearcher) SessionService {
	return &sessionService{
		chatRepo:  chatRepo,
		publisher: publisher,
		searcher:  searcher,
		now:       time.Now,
	}
}

func (s *sessionService) List(userID uint) ([]model.ChatSession, error) {
	sessions, err := s.chatRepo.ListSessions(userID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.ChatSession{}
	}
	return sessions, nil
}

func (s *sessionService) Get(userID, sessionID uint) (*model.ChatSession, error) {
	session, err := s.chatRepo.FindSession(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if session.Messages == nil {
		session.Messages = []model.ChatMessage{}
	}
	return session, nil
}

// End 结束会话并发布索引任务。会话只能结束一次。
func (s *sessionService) End(ctx context.Context, userID, sessionID uint, title *string) (*model.ChatSession, error) {
	session, err := s.Get(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsEnded() {
		return nil, ErrSessionEnded
	}

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			title = nil
		} else {
			title = &trimmed
		}
	}
	endedAt := s.now()
	if err := s.chatRepo.EndSession(sessionID, title, endedAt); err != nil {
		return nil, fmt.Errorf("failed to end chat session: %w", err)
	}
	session.EndedAt = &endedAt
	if title != nil {
		session.Title = title
	}

	if s.publisher != nil {
		task := tasks.SessionIndexTask{SessionID: session.ID, UserID: userID}
		if session.Title != nil {
			task.Title = *session.Title
		}
		if err := s.publisher.PublishSessionTask(ctx, task); err != nil {
			log.Warnf("[SessionService] 发布会话索引任务失败, sessionID: %d, error: %v", session.ID, err)
		}
	}
	return session, nil
}

func (s *sessionService) Search(ctx context.Context, userID uint, query string) ([]model.SessionSearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: q is required", ErrInvalidInput)
	}
	if s.searcher == nil {
		return nil, ErrSearchUnavailable
	}
	hits, err := s.searcher.SearchSessions(ctx, userID, query, searchResultSize)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []model.SessionSearchHit{}
	}
	return hits, nil
}
