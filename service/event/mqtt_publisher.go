/*
 * @module service/event/mqtt_publisher
 * @description MQTT实时消息发布器，将监控事件转发到MQTT主题供外部面板订阅
 * @architecture 事件驱动架构 - 消息通道层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 连接Broker -> 按事件主题发布 -> 关闭连接
 * @rules 未配置MQTT_BROKER时该通道不启用
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs service/event/event_service.go
 */

package event

import (
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher MQTT消息发布器
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
}

// NewMQTTPublisherFromEnv 从环境变量创建MQTT发布器，未配置MQTT_BROKER时返回nil
func NewMQTTPublisherFromEnv() *MQTTPublisher {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		return nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(getEnvWithDefault("MQTT_CLIENT_ID", fmt.Sprintf("sentinel-service-%d", os.Getpid()))).
		SetUsername(os.Getenv("MQTT_USERNAME")).
		SetPassword(os.Getenv("MQTT_PASSWORD")).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("MQTT连接失败，该通道不启用: %v", token.Error())
		return nil
	}

	log.Printf("MQTT发布器已连接: %s", broker)
	return &MQTTPublisher{
		client:      client,
		topicPrefix: getEnvWithDefault("MQTT_TOPIC_PREFIX", "sentinel"),
	}
}

// Publish 发布事件到 <prefix>/<topicKey> 主题
func (p *MQTTPublisher) Publish(topicKey string, payload []byte) error {
	topic := p.topicPrefix + "/" + topicKey
	token := p.client.Publish(topic, 0, false, payload)
	if token.WaitTimeout(3*time.Second) && token.Error() != nil {
		return fmt.Errorf("MQTT发布失败 [%s]: %w", topic, token.Error())
	}
	return nil
}

// Close 断开MQTT连接
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
