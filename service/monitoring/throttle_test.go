/*
 * @module service/monitoring/throttle_test
 * @description 告警节流器测试，覆盖状态变化放行、抑制窗口与窗口过期
 * @architecture 测试层 - 业务服务测试
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 记录告警 -> 判定节流 -> 推进时钟 -> 断言放行
 * @rules 状态发生变化的告警一律放行；状态未变化且在窗口内的同状态告警被抑制
 * @dependencies testing, testify
 * @refs throttle.go
 */

package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sentinel-service/service/models"
)

func newTestThrottle(start time.Time) (*AlertThrottle, *time.Time) {
	now := start
	t := NewAlertThrottle()
	t.now = func() time.Time { return now }
	return t, &now
}

func TestThrottle_FirstAlertPasses(t *testing.T) {
	throttle, _ := newTestThrottle(time.Now())

	assert.False(t, throttle.ShouldThrottle("svc-1", models.StatusDown, false))
}

func TestThrottle_StatusChangeBypassesWindow(t *testing.T) {
	throttle, clock := newTestThrottle(time.Now())

	throttle.Record("svc-1", models.StatusDown)
	*clock = clock.Add(time.Minute)

	// 真实的状态跃迁不受窗口限制，即使与上次告警状态相同
	assert.False(t, throttle.ShouldThrottle("svc-1", models.StatusDown, true))
}

func TestThrottle_UnchangedStatusSuppressedWithinWindow(t *testing.T) {
	throttle, clock := newTestThrottle(time.Now())

	throttle.Record("svc-1", models.StatusDown)

	*clock = clock.Add(5 * time.Minute)
	assert.True(t, throttle.ShouldThrottle("svc-1", models.StatusDown, false))

	*clock = clock.Add(9 * time.Minute)
	assert.True(t, throttle.ShouldThrottle("svc-1", models.StatusDown, false))
}

func TestThrottle_WindowExpiryReleases(t *testing.T) {
	throttle, clock := newTestThrottle(time.Now())

	throttle.Record("svc-1", models.StatusDown)

	*clock = clock.Add(ThrottleWindow + time.Second)
	assert.False(t, throttle.ShouldThrottle("svc-1", models.StatusDown, false))
}

func TestThrottle_DifferentStatusPasses(t *testing.T) {
	throttle, clock := newTestThrottle(time.Now())

	throttle.Record("svc-1", models.StatusDown)
	*clock = clock.Add(time.Minute)

	// down告警后服务转为degraded，新状态的告警放行
	assert.False(t, throttle.ShouldThrottle("svc-1", models.StatusDegraded, false))
}

func TestThrottle_RecordRefreshesWindow(t *testing.T) {
	throttle, clock := newTestThrottle(time.Now())

	throttle.Record("svc-1", models.StatusDown)
	*clock = clock.Add(14 * time.Minute)
	throttle.Record("svc-1", models.StatusDown)

	// 第二次记录重置窗口起点
	*clock = clock.Add(10 * time.Minute)
	assert.True(t, throttle.ShouldThrottle("svc-1", models.StatusDown, false))
}

func TestThrottle_PerServiceIsolation(t *testing.T) {
	throttle, clock := newTestThrottle(time.Now())

	throttle.Record("svc-1", models.StatusDown)
	*clock = clock.Add(time.Minute)

	assert.True(t, throttle.ShouldThrottle("svc-1", models.StatusDown, false))
	assert.False(t, throttle.ShouldThrottle("svc-2", models.StatusDown, false))
}
