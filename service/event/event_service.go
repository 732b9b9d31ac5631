/*
 * @module service/event/event_service
 * @description 事件管理服务，提供SSE实时推送与services表变更监听，可选转发到MQTT/Kafka
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 监控事件/数据库变更 -> 事件分发 -> SSE客户端推送 + 外部消息通道转发
 * @rules SSE客户端队列满时丢弃事件不阻塞推送；数据库监听仅在PostgreSQL环境下生效
 * @dependencies gorm.io/gorm, github.com/lib/pq, github.com/google/uuid
 * @refs service/monitoring/health_checker.go, api/controllers/event_controller.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"sentinel-service/service/models"
)

const notifyChannel = "sentinel_service_changed"

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// LiveUpdatePublisher 外部消息通道发布接口（MQTT/Kafka）
type LiveUpdatePublisher interface {
	Publish(topicKey string, payload []byte) error
	Close() error
}

// EventService 事件管理服务
type EventService struct {
	db          *gorm.DB
	connections map[string]map[string]*SSEClient // userName -> connectionID -> client
	mu          sync.RWMutex
	dbListener  *pq.Listener
	publishers  []LiveUpdatePublisher
	ctx         context.Context
	cancel      context.CancelFunc
}

// SSEClient SSE客户端连接
type SSEClient struct {
	ID       string
	UserName string
	Channel  chan *models.SSEEvent
	Done     chan bool
	ClientIP string
}

// NewEventService 创建事件服务实例
// enableDBListener 仅在PostgreSQL环境下开启（sqlite测试环境不支持LISTEN/NOTIFY）
func NewEventService(db *gorm.DB, enableDBListener bool) *EventService {
	ctx, cancel := context.WithCancel(context.Background())

	service := &EventService{
		db:          db,
		connections: make(map[string]map[string]*SSEClient),
		ctx:         ctx,
		cancel:      cancel,
	}

	if p := NewMQTTPublisherFromEnv(); p != nil {
		service.publishers = append(service.publishers, p)
	}
	if p := NewKafkaPublisherFromEnv(); p != nil {
		service.publishers = append(service.publishers, p)
	}

	if enableDBListener {
		go service.startDBListener()
	}

	return service
}

// === SSE连接管理 ===

// AddSSEConnection 添加SSE连接
func (s *EventService) AddSSEConnection(userName, connectionID, clientIP string) *SSEClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[userName] == nil {
		s.connections[userName] = make(map[string]*SSEClient)
	}

	client := &SSEClient{
		ID:       connectionID,
		UserName: userName,
		Channel:  make(chan *models.SSEEvent, 100), // 缓冲100个事件
		Done:     make(chan bool),
		ClientIP: clientIP,
	}

	s.connections[userName][connectionID] = client

	log.Printf("SSE连接已建立: 用户=%s, 连接ID=%s, IP=%s", userName, connectionID, clientIP)
	return client
}

// RemoveSSEConnection 移除SSE连接
func (s *EventService) RemoveSSEConnection(userName, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userConnections, exists := s.connections[userName]; exists {
		if client, exists := userConnections[connectionID]; exists {
			close(client.Done)
			delete(userConnections, connectionID)

			if len(userConnections) == 0 {
				delete(s.connections, userName)
			}

			log.Printf("SSE连接已断开: 用户=%s, 连接ID=%s", userName, connectionID)
		}
	}
}

// BroadcastEvent 广播事件给所有SSE客户端
func (s *EventService) BroadcastEvent(event *models.SSEEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for userName, userConnections := range s.connections {
		for _, client := range userConnections {
			select {
			case client.Channel <- event:
			default:
				log.Printf("用户 %s 的连接 %s 事件队列已满，跳过推送", userName, client.ID)
			}
		}
	}
}

// === 监控事件发布（供健康检查器调用） ===

// PublishHealthUpdate 发布健康状态更新事件
func (s *EventService) PublishHealthUpdate(event *models.HealthUpdateEvent) {
	s.dispatch(models.EventTypeHealthUpdate, "health/"+event.ServiceID, event)
}

// PublishIncidentOpened 发布事件开启通知
func (s *EventService) PublishIncidentOpened(event *models.IncidentEvent) {
	s.dispatch(models.EventTypeIncidentOpened, "incident/"+event.ServiceID, event)
}

// dispatch 分发事件到SSE客户端与外部消息通道
func (s *EventService) dispatch(eventType, topicKey string, data interface{}) {
	sseEvent := &models.SSEEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
	s.BroadcastEvent(sseEvent)

	if len(s.publishers) == 0 {
		return
	}
	payload, err := json.Marshal(sseEvent)
	if err != nil {
		log.Printf("事件序列化失败: %v", err)
		return
	}
	for _, publisher := range s.publishers {
		if err := publisher.Publish(topicKey, payload); err != nil {
			log.Printf("外部消息通道转发失败: %v", err)
		}
	}
}

// === 数据库监听实现 ===

// startDBListener 启动services表变更监听器
func (s *EventService) startDBListener() {
	if err := s.ensureServiceChangeTrigger(); err != nil {
		log.Printf("创建服务变更触发器失败: %v", err)
	}

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "sentinel")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	s.dbListener = pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("PostgreSQL监听器事件: %v, 错误: %v", ev, err)
		}
	})

	if err := s.dbListener.Listen(notifyChannel); err != nil {
		log.Printf("监听数据库通知失败: %v", err)
		return
	}

	log.Println("服务变更监听器已启动")

	for {
		select {
		case notification := <-s.dbListener.Notify:
			if notification != nil {
				s.handleServiceChange(notification)
			}
		case <-s.ctx.Done():
			log.Println("服务变更监听器已停止")
			return
		}
	}
}

// handleServiceChange 处理services表变更通知，推送给SSE客户端
func (s *EventService) handleServiceChange(notification *pq.Notification) {
	var changeData map[string]interface{}
	if err := json.Unmarshal([]byte(notification.Extra), &changeData); err != nil {
		log.Printf("解析数据库通知失败: %v", err)
		return
	}

	s.dispatch(models.EventTypeServiceChanged, "service-changed", changeData)
}

// ensureServiceChangeTrigger 确保services表的变更通知函数与触发器存在
func (s *EventService) ensureServiceChangeTrigger() error {
	createFunctionSQL := `
CREATE OR REPLACE FUNCTION notify_sentinel_service_changed()
RETURNS TRIGGER AS $$
DECLARE
    payload JSON;
BEGIN
    IF TG_OP = 'DELETE' THEN
        payload := json_build_object(
            'type', TG_OP,
            'record_id', OLD.id,
            'timestamp', extract(epoch from now())
        );
    ELSE
        payload := json_build_object(
            'type', TG_OP,
            'record_id', NEW.id,
            'new_data', row_to_json(NEW),
            'timestamp', extract(epoch from now())
        );
    END IF;

    PERFORM pg_notify('sentinel_service_changed', payload::text);

    IF TG_OP = 'DELETE' THEN
        RETURN OLD;
    ELSE
        RETURN NEW;
    END IF;
END;
$$ LANGUAGE plpgsql;`

	if err := s.db.Exec(createFunctionSQL).Error; err != nil {
		return fmt.Errorf("创建通知函数失败: %w", err)
	}

	createTriggerSQL := `
		CREATE OR REPLACE TRIGGER services_notify
		AFTER INSERT OR UPDATE OR DELETE ON services
		FOR EACH ROW
		EXECUTE FUNCTION notify_sentinel_service_changed();
	`
	if err := s.db.Exec(createTriggerSQL).Error; err != nil {
		return fmt.Errorf("创建触发器失败: %w", err)
	}

	return nil
}

// Stop 停止事件服务
func (s *EventService) Stop() {
	s.cancel()

	if s.dbListener != nil {
		s.dbListener.Close()
	}

	for _, publisher := range s.publishers {
		if err := publisher.Close(); err != nil {
			log.Printf("关闭消息通道失败: %v", err)
		}
	}

	s.mu.Lock()
	for _, userConnections := range s.connections {
		for _, client := range userConnections {
			close(client.Done)
		}
	}
	s.connections = make(map[string]map[string]*SSEClient)
	s.mu.Unlock()

	log.Println("事件服务已停止")
}
