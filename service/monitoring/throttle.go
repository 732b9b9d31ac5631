/*
 * @module service/monitoring/throttle
 * @description 告警节流器，按服务维度记录最近一次告警的时间与状态，抑制窗口内的重复告警
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 判定是否节流 -> 发送成功后记录 -> 窗口过期或状态变化后放行
 * @rules 状态发生变化的告警一律放行；节流状态仅保存在内存，进程重启后清零
 * @dependencies 无
 * @refs service/monitoring/alert_dispatcher.go
 */

package monitoring

import (
	"sync"
	"time"
)

// ThrottleWindow 同一服务同一状态的告警抑制窗口
const ThrottleWindow = 15 * time.Minute

type throttleEntry struct {
	lastAlertTime time.Time
	lastStatus    string
}

// AlertThrottle 告警节流器
type AlertThrottle struct {
	mu      sync.Mutex
	entries map[string]throttleEntry
	window  time.Duration
	now     func() time.Time // 测试可替换时钟
}

// NewAlertThrottle 创建告警节流器实例
func NewAlertThrottle() *AlertThrottle {
	return &AlertThrottle{
		entries: make(map[string]throttleEntry),
		window:  ThrottleWindow,
		now:     time.Now,
	}
}

// ShouldThrottle 判断该服务当前状态的告警是否应被抑制
// 状态发生变化的告警一律放行；状态未变化时，与上次已告警状态相同且仍在窗口内则抑制
func (t *AlertThrottle) ShouldThrottle(serviceID, status string, statusChanged bool) bool {
	if statusChanged {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[serviceID]
	if !ok {
		return false
	}
	if entry.lastStatus != status {
		return false
	}
	return t.now().Sub(entry.lastAlertTime) < t.window
}

// Record 记录一次已发出的告警，开启抑制窗口
func (t *AlertThrottle) Record(serviceID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[serviceID] = throttleEntry{
		lastAlertTime: t.now(),
		lastStatus:    status,
	}
}
