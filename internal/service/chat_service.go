package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dentgo-go/internal/model"
	"dentgo-go/internal/repository"
	"dentgo-go/pkg/llm"
	"dentgo-go/pkg/log"

	"gorm.io/gorm"
)

// DateLayout 是用量统计使用的日期格式 (UTC)。
const DateLayout = "2006-01-02"

const defaultSystemPrompt = "You are Dentgo, an assistant for dental professionals. Answer clearly and concisely, and recommend an in-person examination when a diagnosis cannot be made from the description alone."

// HistoryItem 是客户端随提问附带的一条历史消息。
type HistoryItem struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AskRequest 是一次提问的输入。SessionID 为 nil 时创建新会话。
type AskRequest struct {
	Prompt    string
	History   []HistoryItem
	SessionID *uint
}

// AskResponse 是 POST /api/chat 的响应体。
type AskResponse struct {
	SessionID uint   `json:"sessionId"`
	Answer    string `json:"answer"`
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	Ask(ctx context.Context, user *model.User, req AskRequest) (*AskResponse, error)
	Count(ctx context.Context, userID uint, date string) (int64, error)
}

// ChatOptions 是聊天相关的可调参数。
type ChatOptions struct {
	SystemPrompt       string
	HistoryLimit       int
	FreeMessagesPerDay int
	Generation         *llm.GenerationParams
}

type chatService struct {
	llmClient llm.Client
	chatRepo  repository.ChatRepository
	usageRepo repository.UsageRepository
	opts      ChatOptions
	now       func() time.Time
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(llmClient llm.Client, chatRepo repository.ChatRepository, usageRepo repository.UsageRepository, opts ChatOptions) ChatService {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.FreeMessagesPerDay <= 0 {
		opts.FreeMessagesPerDay = 1
	}
	return &chatService{
		llmClient: llmClient,
		chatRepo:  chatRepo,
		usageRepo: usageRepo,
		opts:      opts,
		now:       time.Now,
	}
}

// Ask 校验额度与会话状态，调用 LLM 并持久化本轮问答。
func (s *chatService) Ask(ctx context.Context, user *model.User, req AskRequest) (*AskResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	today := s.now().UTC().Format(DateLayout)

	// 1. 免费用户的每日额度
	if !user.IsPlus() {
		used, err := s.usageRepo.Get(ctx, user.ID, today)
		if err != nil {
			return nil, err
		}
		if used >= int64(s.opts.FreeMessagesPerDay) {
			return nil, ErrDailyLimitReached
		}
	}

	// 2. 校验已有会话
	var session *model.ChatSession
	if req.SessionID != nil {
		found, err := s.chatRepo.FindSession(*req.SessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
		if found.UserID != user.ID {
			return nil, ErrSessionNotFound
		}
		if found.IsEnded() {
			return nil, ErrSessionEnded
		}
		session = found
	}

	// 3. 调用 LLM
	messages := s.composeMessages(req.History, prompt)
	answer, err := s.llmClient.Chat(ctx, messages, s.opts.Generation)
	if err != nil {
		log.Errorf("[ChatService] 调用 LLM 失败, userID: %d, error: %v", user.ID, err)
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}

	// 4. 首次提问时创建会话，然后保存本轮问答
	if session == nil {
		session = &model.ChatSession{UserID: user.ID, StartedAt: s.now()}
		if err := s.chatRepo.CreateSession(session); err != nil {
			return nil, fmt.Errorf("failed to create chat session: %w", err)
		}
	}
	err = s.chatRepo.AddMessages(
		&model.ChatMessage{SessionID: session.ID, Role: model.MessageRoleUser, Content: prompt},
		&model.ChatMessage{SessionID: session.ID, Role: model.MessageRoleAssistant, Content: answer},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save chat messages: %w", err)
	}

	if _, err := s.usageRepo.Incr(ctx, user.ID, today); err != nil {
		log.Warnf("[ChatService] 更新用量计数失败, userID: %d, error: %v", user.ID, err)
	}

	return &AskResponse{SessionID: session.ID, Answer: answer}, nil
}

// Count 返回用户在指定日期 (YYYY-MM-DD) 已发送的消息数。
func (s *chatService) Count(ctx context.Context, userID uint, date string) (int64, error) {
	if date == "" {
		date = s.now().UTC().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return 0, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return s.usageRepo.Get(ctx, userID, date)
}

// composeMessages 组装 system 消息、最近的历史与本轮提问。
func (s *chatService) composeMessages(history []HistoryItem, prompt string) []llm.Message {
	if len(history) > s.opts.HistoryLimit {
		history = history[len(history)-s.opts.HistoryLimit:]
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: s.opts.SystemPrompt})
	for _, h := range history {
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		role := "user"
		if strings.EqualFold(h.Role, "assistant") {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: text})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: prompt})
	return msgs
}
