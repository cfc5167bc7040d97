// Package apiclient 是 Dentgo REST API 的客户端，使用 cookie 维持登录状态。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"dentgo-go/internal/localstore"
	"dentgo-go/pkg/log"
)

const csrfHeader = "x-csrf-token"

// Client 对应一个 API 地址，所有请求共享同一个 cookie jar。
type Client struct {
	base *url.URL
	http *http.Client
}

// Option 配置 Client。
type Option func(*options)

type options struct {
	httpClient *http.Client
	storage    localstore.Storage
}

// WithHTTPClient 使用自定义的 http.Client，其 Jar 会被替换。
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithStorage 把 cookie 持久化到本地存储。
func WithStorage(s localstore.Storage) Option {
	return func(o *options) { o.storage = s }
}

// New 创建一个指向 baseURL 的 Client。
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base %q: scheme and host are required", baseURL)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	httpClient := &http.Client{}
	if o.httpClient != nil {
		cp := *o.httpClient
		httpClient = &cp
	}
	jar, err := newPersistentJar(base, o.storage)
	if err != nil {
		return nil, fmt.Errorf("failed to restore cookies: %w", err)
	}
	httpClient.Jar = jar

	return &Client{base: base, http: httpClient}, nil
}

// BaseURL 返回 API 地址。
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) url(path string) string {
	return c.base.String() + path
}

// do 发送 JSON 请求并把响应解码到 out。非 2xx 时返回 *APIError。
func (c *Client) do(ctx context.Context, method, path string, body, out any, fallback string, header http.Header) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return c.send(req, out, fallback)
}

func (c *Client) send(req *http.Request, out any, fallback string) error {
	log.Debugf("apiclient: %s %s", req.Method, req.URL.Path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", fallback, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, raw, fallback)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", fallback, err)
	}
	return nil
}

// ---- 认证 ----

// LoginWithGoogle 用 Google ID token 登录。
func (c *Client) LoginWithGoogle(ctx context.Context, credential string) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/google", map[string]string{"credential": credential}, &out, "Google login failed", nil); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("Google login failed: response has no user")
	}
	return out.User, nil
}

// AppleLoginURL 返回浏览器中发起 Apple 登录的地址。
func (c *Client) AppleLoginURL() string {
	return c.url("/api/auth/apple")
}

// CSRFToken 获取刷新会话所需的 CSRF token。
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	var out struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/csrf-token", nil, &out, "Failed to fetch CSRF token", nil); err != nil {
		return "", err
	}
	return out.CSRFToken, nil
}

// Refresh 先获取 CSRF token，再用 refresh cookie 换取新会话。
func (c *Client) Refresh(ctx context.Context) error {
	csrf, err := c.CSRFToken(ctx)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set(csrfHeader, csrf)
	return c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, nil, "Session refresh failed", header)
}

// Logout 通知服务端登出。错误只记录日志。
func (c *Client) Logout(ctx context.Context) {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, "Logout failed", nil); err != nil {
		log.Debugf("apiclient: logout failed: %v", err)
	}
}

// DeleteAccount 永久删除当前账号。
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/auth/delete", nil, nil, "Failed to delete account", nil)
}

// Me 返回当前登录用户。
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &out, "Failed to fetch user", nil); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("Failed to fetch user: response has no user")
	}
	return out.User, nil
}

// ---- 聊天 ----

// Ask 发送一次提问。
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if req.History == nil {
		req.History = []HistoryItem{}
	}
	var out AskResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &out, "Chat failed", nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Count 返回指定日期 (YYYY-MM-DD，UTC) 已发送的消息数。
func (c *Client) Count(ctx context.Context, date string) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	path := "/api/chat/count?date=" + url.QueryEscape(date)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, "Failed to fetch usage", nil); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// ListSessions 返回全部会话，最新的在前。
func (c *Client) ListSessions(ctx context.Context) ([]ChatSession, error) {
	var out []ChatSession
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out, "Failed to fetch chat sessions", nil); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession 返回单个会话及其消息。
func (c *Client) GetSession(ctx context.Context, id int64) (*ChatSession, error) {
	var out ChatSession
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+strconv.FormatInt(id, 10), nil, &out, "Failed to fetch chat session", nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndSession 结束会话。title 去除空白后为空时不发送。
func (c *Client) EndSession(ctx context.Context, id int64, title string) (*ChatSession, error) {
	var body any
	if t := strings.TrimSpace(title); t != "" {
		body = map[string]string{"title": t}
	}
	var out ChatSession
	if err := c.do(ctx, http.MethodPatch, "/api/chats/"+strconv.FormatInt(id, 10)+"/end", body, &out, "Failed to end chat session", nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchSessions 在已结束的会话中做全文检索。
func (c *Client) SearchSessions(ctx context.Context, query string) ([]SearchHit, error) {
	var out []SearchHit
	if err := c.do(ctx, http.MethodGet, "/api/chats/search?q="+url.QueryEscape(query), nil, &out, "Search failed", nil); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- 支付 ----

// ListCards 返回保存的卡片。
func (c *Client) ListCards(ctx context.Context) ([]Card, error) {
	var out []Card
	if err := c.do(ctx, http.MethodGet, "/api/payments/cards", nil, &out, "Failed to fetch cards", nil); err != nil {
		return nil, err
	}
	return out, nil
}

// AddCard 保存一个已确认的支付方式。
func (c *Client) AddCard(ctx context.Context, paymentMethodID, nickName string) (*Card, error) {
	body := map[string]any{"paymentMethodId": paymentMethodID}
	if nickName != "" {
		body["nickName"] = nickName
	}
	var out Card
	if err := c.do(ctx, http.MethodPost, "/api/payments/cards", body, &out, "Failed to save card", nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveCard 删除一张卡片。
func (c *Client) RemoveCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/payments/cards/"+url.PathEscape(id), nil, nil, "Failed to remove card", nil)
}

// CreateCustomer 确保当前用户有支付平台的 customer。
func (c *Client) CreateCustomer(ctx context.Context) (string, error) {
	var out struct {
		CustomerID string `json:"customerId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/payments/create-customer", nil, &out, "Failed to create customer", nil); err != nil {
		return "", err
	}
	return out.CustomerID, nil
}

// CreateSetupIntent 返回保存卡片所需的 client secret。
func (c *Client) CreateSetupIntent(ctx context.Context) (string, error) {
	return c.clientSecret(ctx, "/api/payments/create-setup-intent", nil, "Failed to create setup intent")
}

// CreatePaymentIntent 为一次性付款返回 client secret，amount 以最小货币单位计。
func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64) (string, error) {
	return c.clientSecret(ctx, "/api/payments/create-payment-intent", map[string]int64{"amount": amount}, "Failed to create payment intent")
}

func (c *Client) clientSecret(ctx context.Context, path string, body any, fallback string) (string, error) {
	var out struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &out, fallback, nil); err != nil {
		return "", err
	}
	return out.ClientSecret, nil
}

// CreateSubscription 订阅或切换套餐。
func (c *Client) CreateSubscription(ctx context.Context, priceID, paymentMethodID string) (*SubscriptionIntent, error) {
	body := map[string]string{"priceId": priceID}
	if paymentMethodID != "" {
		body["paymentMethodId"] = paymentMethodID
	}
	var out SubscriptionIntent
	if err := c.do(ctx, http.MethodPost, "/api/payments/create-subscription", body, &out, "Subscription failed", nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelSubscription 取消当前订阅。
func (c *Client) CancelSubscription(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/payments/cancel-subscription", nil, nil, "Failed to cancel subscription", nil)
}

// CreatePortalSession 返回账单门户地址。
func (c *Client) CreatePortalSession(ctx context.Context, returnURL string) (string, error) {
	var body any
	if returnURL != "" {
		body = map[string]string{"returnUrl": returnURL}
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/payments/create-portal-session", body, &out, "Failed to open billing portal", nil); err != nil {
		return "", err
	}
	return out.URL, nil
}

// GetSubscription 返回当前订阅。服务端未给出 plan 时按 subscriptionId 推断。
func (c *Client) GetSubscription(ctx context.Context) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodGet, "/api/subscriptions", nil, &out, "Failed to fetch subscription", nil); err != nil {
		return nil, err
	}
	if out.Plan != PlanPlus && out.SubscriptionID != nil {
		out.Plan = PlanPlus
	}
	if out.Plan != PlanPlus {
		out.Plan = PlanFree
	}
	return &out, nil
}

// ---- 通知与上传 ----

// ListNotifications 返回站内通知。
func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &out, "Failed to fetch notifications", nil); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationSeen 把一条通知标记为已读。
func (c *Client) MarkNotificationSeen(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+strconv.FormatInt(id, 10)+"/seen", nil, nil, "Failed to update notification", nil)
}

// UploadXRay 以 multipart 表单上传一张 X 光片。
func (c *Client) UploadXRay(ctx context.Context, patientName, fileName string, image io.Reader) (*XRayUpload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", patientName); err != nil {
		return nil, err
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(fileName)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/xray-upload"), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var out XRayUpload
	if err := c.send(req, &out, "Upload failed"); err != nil {
		return nil, err
	}
	return &out, nil
}
