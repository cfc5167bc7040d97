// Package chat 驱动一次聊天页面的收发流程：打开会话、提问、结束会话。
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"dentgo-go/internal/messagestore"
	"dentgo-go/internal/notify"
	"dentgo-go/pkg/apiclient"
	"dentgo-go/pkg/log"
)

// Greeting 是新会话展示的欢迎语，不作为历史发送。
const Greeting = "Hey, I'm Dentgo 😊 How can I assist with your dental cases today?"

// RouteHome 是结束会话后跳转的路由。
const RouteHome = "/"

const fallbackError = "Something went wrong."

var (
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrRequestInFlight   = errors.New("a request is already in flight")
	ErrSessionEnded      = errors.New("chat session has ended")
	ErrDailyLimitReached = errors.New("daily free message limit reached")
)

// State 是控制器的收发状态。
type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	if s == StateSending {
		return "sending"
	}
	return "idle"
}

// API 是控制器依赖的接口子集，由 *apiclient.Client 实现。
type API interface {
	Ask(ctx context.Context, req apiclient.AskRequest) (*apiclient.AskResponse, error)
	GetSession(ctx context.Context, id int64) (*apiclient.ChatSession, error)
	EndSession(ctx context.Context, id int64, title string) (*apiclient.ChatSession, error)
	Count(ctx context.Context, date string) (int64, error)
}

// PlanSource 提供当前订阅，*billing.Provider 满足该接口。
type PlanSource interface {
	Subscription(ctx context.Context) (*apiclient.Subscription, error)
}

// Navigator 代替浏览器地址栏。
type Navigator interface {
	Replace(path string)
	Navigate(route string)
}

// Options 配置控制器的免费额度。
type Options struct {
	FreeMessagesPerDay int64
}

// Controller 持有页面状态。Send 期间不持锁，第二次 Send 会看到 StateSending。
type Controller struct {
	api      API
	store    *messagestore.Store
	plans    PlanSource
	nav      Navigator
	notifier notify.Notifier
	opts     Options

	mu        sync.Mutex
	state     State
	sessionID *int64
	title     string
	ended     bool
	usedToday int64
}

func NewController(api API, store *messagestore.Store, plans PlanSource, nav Navigator, notifier notify.Notifier, opts Options) *Controller {
	if opts.FreeMessagesPerDay <= 0 {
		opts.FreeMessagesPerDay = 1
	}
	return &Controller{api: api, store: store, plans: plans, nav: nav, notifier: notifier, opts: opts}
}

// Open 打开一个已有会话，或在 sessionID 为 nil 时开始新会话。
func (c *Controller) Open(ctx context.Context, sessionID *int64) error {
	c.loadUsage(ctx)

	if sessionID == nil {
		c.mu.Lock()
		c.sessionID, c.title, c.ended = nil, "", false
		c.mu.Unlock()

		if err := c.store.Reset(); err != nil {
			return err
		}
		greeting := messagestore.NewMessage(messagestore.RoleAssistant, Greeting)
		greeting.Greeting = true
		return c.store.Add(greeting)
	}

	session, err := c.api.GetSession(ctx, *sessionID)
	if err != nil {
		return err
	}
	if err := c.store.Load(SessionMessages(session.Messages)); err != nil {
		return err
	}

	id := session.ID
	c.mu.Lock()
	c.sessionID = &id
	c.title = ""
	if session.Title != nil {
		c.title = *session.Title
	}
	c.ended = session.Ended()
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadUsage(ctx context.Context) {
	count, err := c.api.Count(ctx, time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		log.Debugf("chat: load usage failed: %v", err)
		return
	}
	c.mu.Lock()
	c.usedToday = count
	c.mu.Unlock()
}

// Send 发送一条提问。成功返回助手回复；请求失败时追加错误气泡并返回错误。
func (c *Controller) Send(ctx context.Context, prompt string) (*messagestore.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	// 1. 检查状态并占位
	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	if c.ended {
		c.mu.Unlock()
		return nil, ErrSessionEnded
	}
	c.state = StateSending
	sessionID := c.sessionID
	used := c.usedToday
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
	}()

	// 2. 免费额度
	if !c.isPlus(ctx) && used >= c.opts.FreeMessagesPerDay {
		notify.Error(c.notifier, fmt.Sprintf("You’ve used %d/%d free messages today. Upgrade for unlimited.", used, c.opts.FreeMessagesPerDay))
		return nil, ErrDailyLimitReached
	}

	// 3. 记录历史并追加用户消息
	history := historyOf(c.store.Messages())
	if err := c.store.Add(messagestore.NewMessage(messagestore.RoleUser, prompt)); err != nil {
		return nil, err
	}

	// 4. 提问
	resp, err := c.api.Ask(ctx, apiclient.AskRequest{Prompt: prompt, History: history, SessionID: sessionID})
	if err != nil {
		bubble := messagestore.NewMessage(messagestore.RoleAssistant, "❌ "+errorMessage(err))
		bubble.Error = true
		if addErr := c.store.Add(bubble); addErr != nil {
			log.Warnf("chat: append error bubble failed, error: %v", addErr)
		}
		return nil, err
	}

	// 5. 采用服务端返回的会话 ID
	c.mu.Lock()
	if c.sessionID == nil && resp.SessionID != nil {
		id := *resp.SessionID
		c.sessionID = &id
		c.nav.Replace("?sessionId=" + strconv.FormatInt(id, 10))
	}
	c.usedToday++
	c.mu.Unlock()

	reply := messagestore.NewMessage(messagestore.RoleAssistant, resp.Answer)
	if err := c.store.Add(reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Controller) isPlus(ctx context.Context) bool {
	if c.plans == nil {
		return false
	}
	sub, err := c.plans.Subscription(ctx)
	if err != nil {
		log.Debugf("chat: fetch subscription failed: %v", err)
		return false
	}
	return sub != nil && sub.Plan == apiclient.PlanPlus
}

// EndSession 结束当前会话并回到首页。失败时不跳转；尚未创建会话时直接回到首页。
func (c *Controller) EndSession(ctx context.Context, title string) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID == nil {
		c.nav.Navigate(RouteHome)
		return nil
	}

	session, err := c.api.EndSession(ctx, *sessionID, title)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ended = true
	if session.Title != nil {
		c.title = *session.Title
	}
	c.mu.Unlock()

	c.nav.Navigate(RouteHome)
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID 返回当前会话 ID，新会话在首次回复前为 nil。
func (c *Controller) SessionID() *int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == nil {
		return nil
	}
	id := *c.sessionID
	return &id
}

func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

func (c *Controller) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func (c *Controller) UsedToday() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedToday
}

func (c *Controller) Messages() []messagestore.ChatMessage {
	return c.store.Messages()
}

func historyOf(msgs []messagestore.ChatMessage) []apiclient.HistoryItem {
	history := make([]apiclient.HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		if m.Error || m.Greeting {
			continue
		}
		history = append(history, apiclient.HistoryItem{Role: m.Role, Text: m.Content})
	}
	return history
}

// SessionMessages 把服务端消息转换成本地消息，角色统一为小写。
func SessionMessages(in []apiclient.SessionMessage) []messagestore.ChatMessage {
	out := make([]messagestore.ChatMessage, 0, len(in))
	for _, m := range in {
		role := messagestore.RoleUser
		if strings.EqualFold(m.Role, "ASSISTANT") {
			role = messagestore.RoleAssistant
		}
		msg := messagestore.NewMessage(role, m.Content)
		if ts, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
			msg.Timestamp = ts.UnixMilli()
		}
		out = append(out, msg)
	}
	return out
}

func errorMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallbackError
}
