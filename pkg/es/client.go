// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dentgo-go/internal/config"
	"dentgo-go/internal/model"
	"dentgo-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// 会话全文索引的 mapping，content 存储完整问答记录。
const sessionMapping = `{
	"mappings": {
		"properties": {
			"session_id": { "type": "long" },
			"user_id": { "type": "long" },
			"title": { "type": "text" },
			"content": { "type": "text" },
			"started_at": { "type": "date" },
			"ended_at": { "type": "date" }
		}
	}
}`

// InitES 初始化 Elasticsearch 客户端
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return NewSessionIndex(client, esCfg.IndexName).EnsureIndex(context.Background())
}

// SessionIndex 封装了会话索引上的读写操作。
type SessionIndex struct {
	client *elasticsearch.Client
	name   string
}

// NewSessionIndex 创建一个绑定到指定索引名的 SessionIndex。
func NewSessionIndex(client *elasticsearch.Client, name string) *SessionIndex {
	return &SessionIndex{client: client, name: name}
}

// EnsureIndex 检查索引是否存在，如果不存在则创建它
func (s *SessionIndex) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.name}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", s.name)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = s.client.Indices.Create(
		s.name,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(sessionMapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", s.name, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", s.name, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", s.name)
	return nil
}

// IndexSession 将单个会话文档写入索引，文档 ID 为会话 ID，重复写入即覆盖。
func (s *SessionIndex) IndexSession(ctx context.Context, doc model.SessionDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      s.name,
		DocumentID: strconv.FormatUint(uint64(doc.SessionID), 10),
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}
	return nil
}

// SearchSessions 在指定用户的会话中做全文检索。
func (s *SessionIndex) SearchSessions(ctx context.Context, userID uint, query string, size int) ([]model.SessionSearchHit, error) {
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"title^2", "content"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"user_id": userID},
				},
			},
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"content": map[string]interface{}{"fragment_size": 120, "number_of_fragments": 1},
			},
		},
		"size": size,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.name),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source    model.SessionDocument `json:"_source"`
				Score     float64               `json:"_score"`
				Highlight map[string][]string   `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]model.SessionSearchHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		var snippet string
		if frags := h.Highlight["content"]; len(frags) > 0 {
			snippet = frags[0]
		} else {
			snippet = truncateRunes(h.Source.Content, 120)
		}
		hits = append(hits, model.SessionSearchHit{
			SessionID: h.Source.SessionID,
			Title:     h.Source.Title,
			Snippet:   snippet,
			Score:     h.Score,
			EndedAt:   h.Source.EndedAt,
		})
	}
	return hits, nil
}

// DeleteUserSessions 删除某个用户的全部会话文档。
func (s *SessionIndex) DeleteUserSessions(ctx context.Context, userID uint) error {
	body := fmt.Sprintf(`{"query":{"term":{"user_id":%d}}}`, userID)
	res, err := s.client.DeleteByQuery(
		[]string{s.name},
		strings.NewReader(body),
		s.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch delete_by_query failed: %s", res.Status())
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
