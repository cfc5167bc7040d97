package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"dentgo-go/internal/localstore"
	"dentgo-go/pkg/log"
)

// CookieStorageKey 是会话 cookie 在本地存储中的键。
const CookieStorageKey = "dentgo.cookies"

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires,omitempty"`
}

// persistentJar 在 cookiejar 之上把 API 域名下的 cookie 写入本地存储，使登录状态跨进程保留。
type persistentJar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	storage localstore.Storage
	cookies map[string]storedCookie
	now     func() time.Time
}

func newPersistentJar(base *url.URL, storage localstore.Storage) (*persistentJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &persistentJar{
		inner:   inner,
		storage: storage,
		cookies: map[string]storedCookie{},
		now:     time.Now,
	}
	if storage == nil {
		return j, nil
	}

	raw, ok, err := storage.Get(CookieStorageKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return j, nil
	}
	var saved []storedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		log.Warnf("apiclient: 丢弃无法解析的本地 cookie, error: %v", err)
		return j, nil
	}
	restore := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		if !c.Expires.IsZero() && !c.Expires.After(j.now()) {
			continue
		}
		j.cookies[cookieKey(c.Path, c.Name)] = c
		restore = append(restore, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	inner.SetCookies(base, restore)
	return j, nil
}

func cookieKey(path, name string) string {
	return path + "|" + name
}

func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)
	if j.storage == nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		key := cookieKey(path, c.Name)
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!expires.IsZero() && !expires.After(now)) {
			delete(j.cookies, key)
			continue
		}
		j.cookies[key] = storedCookie{Name: c.Name, Value: c.Value, Path: path, Expires: expires}
	}
	j.persist()
}

func (j *persistentJar) persist() {
	list := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		list = append(list, c)
	}
	raw, err := json.Marshal(list)
	if err != nil {
		log.Warnf("apiclient: 序列化 cookie 失败, error: %v", err)
		return
	}
	if err := j.storage.Set(CookieStorageKey, string(raw)); err != nil {
		log.Warnf("apiclient: 保存 cookie 失败, error: %v", err)
	}
}
