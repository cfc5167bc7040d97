// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dentgo-go/internal/config"
	"dentgo-go/pkg/log"
	"dentgo-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// MaxAttempts 是单个任务在提交 offset 放弃前的最大处理次数。
const MaxAttempts = 3

// ErrProducerNotReady 在 InitProducer 之前发布任务时返回。
var ErrProducerNotReady = errors.New("kafka producer is not initialized")

// TaskProcessor defines the interface for any service that can process a task.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.SessionIndexTask) error
}

// AttemptTracker 记录任务失败次数。
type AttemptTracker interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceSessionTask 发送一个会话索引任务到 Kafka。
func ProduceSessionTask(ctx context.Context, task tasks.SessionIndexTask) error {
	if producer == nil {
		return ErrProducerNotReady
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.Key()),
		Value: taskBytes,
	})
}

// Producer 把全局生产者暴露为服务层可注入的依赖。
type Producer struct{}

// PublishSessionTask 实现 service.TaskPublisher。
func (Producer) PublishSessionTask(ctx context.Context, task tasks.SessionIndexTask) error {
	return ProduceSessionTask(ctx, task)
}

// RedisAttemptTracker 使用 Redis 计数失败次数，计数保留 24 小时。
type RedisAttemptTracker struct {
	RDB *redis.Client
}

func (t RedisAttemptTracker) Incr(ctx context.Context, key string) (int64, error) {
	attemptsKey := fmt.Sprintf("kafka:attempts:%s", key)
	attempts, err := t.RDB.Incr(ctx, attemptsKey).Result()
	if err != nil {
		return 0, err
	}
	_ = t.RDB.Expire(ctx, attemptsKey, 24*time.Hour).Err()
	return attempts, nil
}

func (t RedisAttemptTracker) Reset(ctx context.Context, key string) error {
	return t.RDB.Del(ctx, fmt.Sprintf("kafka:attempts:%s", key)).Err()
}

// HandleMessage 处理一条消息并返回是否应提交 offset。
// 格式错误的消息直接提交；处理失败时未达 MaxAttempts 次不提交，让 Kafka 重投。
func HandleMessage(ctx context.Context, value []byte, processor TaskProcessor, tracker AttemptTracker) bool {
	var task tasks.SessionIndexTask
	if err := json.Unmarshal(value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	log.Infof("开始处理会话索引任务: SessionID=%d", task.SessionID)
	if err := processor.Process(ctx, task); err != nil {
		log.Errorf("处理会话索引任务失败: SessionID=%d, Error: %v", task.SessionID, err)
		attempts, incErr := tracker.Incr(ctx, task.Key())
		if incErr != nil {
			// 计数失败时不提交 offset，让 Kafka 重试
			return false
		}
		if attempts >= MaxAttempts {
			log.Errorf("会话索引任务多次失败(>=%d)，提交 offset 终止重试: SessionID=%d", MaxAttempts, task.SessionID)
			return true
		}
		return false
	}

	log.Infof("会话索引任务处理成功: SessionID=%d", task.SessionID)
	_ = tracker.Reset(ctx, task.Key())
	return true
}

// StartConsumer 启动一个 Kafka 消费者来处理会话索引任务，ctx 取消时退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, tracker AttemptTracker) {
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "dentgo-indexer"
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)
		if HandleMessage(ctx, m.Value, processor, tracker) {
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}
