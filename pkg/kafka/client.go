// Package kafka carries file processing tasks over a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"muichiro-nexus/internal/config"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// MaxAttempts bounds how often one task is processed before its offset is
// committed regardless of outcome.
const MaxAttempts = 3

// TaskProcessor runs one file processing task.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.FileProcessingTask) error
}

// Producer publishes tasks. It satisfies the upload service's dispatcher.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Infof("[Kafka] producer ready, topic '%s'", cfg.Topic)
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

// Dispatch publishes task keyed by file id.
func (p *Producer) Dispatch(ctx context.Context, task tasks.FileProcessingTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.FileID),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// AttemptCounter counts processing attempts per task across restarts.
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type redisAttempts struct {
	rdb *redis.Client
}

// NewRedisAttemptCounter keeps counters in Redis with a 24h expiry.
func NewRedisAttemptCounter(rdb *redis.Client) AttemptCounter {
	return &redisAttempts{rdb: rdb}
}

func (r *redisAttempts) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = r.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (r *redisAttempts) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

func attemptsKey(fileID string) string {
	return fmt.Sprintf("kafka:attempts:%s", fileID)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads tasks from the topic and hands them to a TaskProcessor.
type Consumer struct {
	reader    messageReader
	processor TaskProcessor
	attempts  AttemptCounter
	backoff   time.Duration
}

func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  strings.Split(cfg.Brokers, ","),
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		processor: processor,
		attempts:  attempts,
		backoff:   2 * time.Second,
	}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info("[Kafka] consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Error("[Kafka] close reader failed", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				log.Info("[Kafka] consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		c.handle(ctx, m)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle processes one message until it succeeds or MaxAttempts is reached,
// then commits it. Malformed messages are committed right away.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var task tasks.FileProcessingTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("[Kafka] cannot decode message at offset %d: %v", m.Offset, err)
		c.commit(ctx, m)
		return
	}

	key := attemptsKey(task.FileID)
	for {
		err := c.processor.Process(ctx, task)
		if err == nil {
			_ = c.attempts.Reset(ctx, key)
			c.commit(ctx, m)
			return
		}
		log.Errorf("[Kafka] processing file %s failed: %v", task.FileID, err)

		n, incErr := c.attempts.Incr(ctx, key)
		if incErr != nil {
			log.Error("[Kafka] attempt counter unavailable, giving up on task", incErr)
			c.commit(ctx, m)
			return
		}
		if n >= MaxAttempts {
			log.Errorf("[Kafka] file %s failed %d times, committing offset", task.FileID, n)
			_ = c.attempts.Reset(ctx, key)
			c.commit(ctx, m)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("[Kafka] commit offset %d failed: %v", m.Offset, err)
	}
}
