/*
 * @module service/event/kafka_publisher
 * @description Kafka事件发布器，将监控事件写入Kafka主题供下游分析消费
 * @architecture 事件驱动架构 - 消息通道层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 创建Writer -> 按事件写入消息 -> 关闭Writer
 * @rules 未配置KAFKA_BROKERS时该通道不启用；消息按topicKey作为分区键保证同服务事件有序
 * @dependencies github.com/segmentio/kafka-go
 * @refs service/event/event_service.go
 */

package event

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher Kafka事件发布器
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisherFromEnv 从环境变量创建Kafka发布器，未配置KAFKA_BROKERS时返回nil
func NewKafkaPublisherFromEnv() *KafkaPublisher {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil
	}

	topic := getEnvWithDefault("KAFKA_TOPIC", "sentinel-events")
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	log.Printf("Kafka发布器已创建: brokers=%s, topic=%s", brokers, topic)
	return &KafkaPublisher{writer: writer}
}

// Publish 将事件写入Kafka，topicKey作为消息键
func (p *KafkaPublisher) Publish(topicKey string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(topicKey),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("Kafka写入失败: %w", err)
	}
	return nil
}

// Close 关闭Kafka Writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
