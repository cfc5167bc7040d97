package apiclient

// 套餐名称。
const (
	PlanFree = "FREE"
	PlanPlus = "PLUS"
)

// 订阅状态。
const (
	StatusActive         = "active"
	StatusRequiresAction = "requires_action"
)

// User 是 /api/users/me 返回的用户资料。
type User struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	Role    string `json:"role"`
}

// HistoryItem 是随提问发送的一条历史消息。
type HistoryItem struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AskRequest 是 POST /api/chat 的请求体，SessionID 为 nil 时序列化为 null。
type AskRequest struct {
	Prompt    string        `json:"prompt"`
	History   []HistoryItem `json:"history"`
	SessionID *int64        `json:"sessionId"`
}

// AskResponse 是 POST /api/chat 的响应体。
type AskResponse struct {
	SessionID *int64 `json:"sessionId"`
	Answer    string `json:"answer"`
}

// SessionMessage 是服务端会话中的一条消息。
type SessionMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// ChatSession 是服务端拥有的会话。
type ChatSession struct {
	ID        int64            `json:"id"`
	Title     *string          `json:"title,omitempty"`
	StartedAt string           `json:"startedAt"`
	EndedAt   *string          `json:"endedAt"`
	IsEnded   bool             `json:"isEnded"`
	Messages  []SessionMessage `json:"messages"`
}

// Ended 在 isEnded 或 endedAt 任一存在时为 true。
func (s ChatSession) Ended() bool {
	return s.IsEnded || s.EndedAt != nil
}

// SearchHit 是历史搜索的一条结果。
type SearchHit struct {
	SessionID int64   `json:"sessionId"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	EndedAt   string  `json:"endedAt"`
}

// Card 是服务端保存的一张卡片。
type Card struct {
	ID              string  `json:"id"`
	PaymentMethodID string  `json:"paymentMethodId"`
	NickName        *string `json:"nickName"`
	Brand           string  `json:"brand,omitempty"`
	Last4           string  `json:"last4,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
}

// Subscription 是 GET /api/subscriptions 的响应体。
type Subscription struct {
	SubscriptionID   *string `json:"subscriptionId"`
	Plan             string  `json:"plan"`
	Status           string  `json:"status"`
	CurrentPeriodEnd *int64  `json:"currentPeriodEnd"`
	CancelAt         *int64  `json:"cancelAt,omitempty"`
}

// SubscriptionIntent 是创建订阅的响应体。
type SubscriptionIntent struct {
	ClientSecret   string `json:"clientSecret"`
	SubscriptionID string `json:"subscriptionId"`
	Status         string `json:"status"`
}

// Notification 是一条站内通知。
type Notification struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Seen      bool   `json:"seen"`
	CreatedAt string `json:"createdAt"`
}

// XRayUpload 是一次 X 光片上传的记录。
type XRayUpload struct {
	ID          int64  `json:"id"`
	PatientName string `json:"patientName"`
	ObjectName  string `json:"objectName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
	CreatedAt   string `json:"createdAt"`
}
