/*
 * @module service/scheduler/scheduler_service
 * @description 定时调度服务，周期触发健康检查与可靠性评分计算，支持多实例下的分布式锁防重
 * @architecture 分层架构 - 调度层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 启动 -> 延迟首轮执行 -> cron周期触发 -> 停止时回收任务
 * @rules 健康检查每10秒一轮，可靠性评分每小时整点一轮；有Redis锁时同一轮只由一个实例执行
 * @dependencies github.com/robfig/cron/v3
 * @refs service/monitoring/monitor_service.go, service/distributed_lock/redis_lock.go
 */

package scheduler

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"sentinel-service/service/distributed_lock"
	"sentinel-service/service/monitoring"
)

const (
	healthCheckSpec = "*/10 * * * * *" // 每10秒
	reliabilitySpec = "0 0 * * * *"    // 每小时整点
	initialRunDelay = 2 * time.Second

	healthPollLockKey = "health_poll"
	healthPollLockTTL = 9 * time.Second
)

// SchedulerService 定时调度服务
type SchedulerService struct {
	cron    *cron.Cron
	monitor *monitoring.MonitorService
	lock    distributed_lock.DistributedLock // 可为nil，此时为单实例模式
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSchedulerService 创建调度服务实例
// 配置了REDIS_HOST时启用分布式锁，连接失败则降级为单实例模式
func NewSchedulerService(monitor *monitoring.MonitorService) *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())

	s := &SchedulerService{
		cron:    cron.New(cron.WithSeconds()),
		monitor: monitor,
		ctx:     ctx,
		cancel:  cancel,
	}

	if os.Getenv("REDIS_HOST") != "" {
		lock, err := distributed_lock.NewRedisLock()
		if err != nil {
			slog.Warn("分布式锁初始化失败，降级为单实例调度", "error", err)
		} else {
			s.lock = lock
		}
	}

	return s
}

// Start 启动调度器
func (s *SchedulerService) Start() error {
	if _, err := s.cron.AddFunc(healthCheckSpec, s.runHealthCheck); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(reliabilitySpec, s.runReliabilityCalculation); err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("调度服务已启动",
		"health_check_spec", healthCheckSpec,
		"reliability_spec", reliabilitySpec)

	// 启动后短暂延迟执行首轮，不等待第一个cron周期
	go func() {
		timer := time.NewTimer(initialRunDelay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			s.runHealthCheck()
			s.runReliabilityCalculation()
		}
	}()

	return nil
}

// Stop 停止调度器，等待在途任务完成
func (s *SchedulerService) Stop() {
	s.cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	if closer, ok := s.lock.(*distributed_lock.RedisLock); ok {
		closer.Close()
	}
	slog.Info("调度服务已停止")
}

// TriggerHealthCheck 手动触发一轮健康检查（调试接口使用），绕过分布式锁
func (s *SchedulerService) TriggerHealthCheck(ctx context.Context) []*monitoring.CheckResult {
	return s.monitor.RunHealthCheck(ctx)
}

// TriggerReliabilityCalculation 手动触发一轮可靠性评分计算（调试接口使用）
func (s *SchedulerService) TriggerReliabilityCalculation(ctx context.Context) {
	s.monitor.RunReliabilityCalculation(ctx)
}

func (s *SchedulerService) runHealthCheck() {
	if s.lock != nil {
		locked, err := s.lock.TryLock(s.ctx, healthPollLockKey, healthPollLockTTL)
		if err != nil {
			log.Printf("健康检查锁获取失败，本实例跳过本轮: %v", err)
			return
		}
		if !locked {
			return
		}
		defer func() {
			if err := s.lock.Unlock(s.ctx, healthPollLockKey); err != nil {
				log.Printf("健康检查锁释放失败: %v", err)
			}
		}()
	}

	s.monitor.RunHealthCheck(s.ctx)
}

func (s *SchedulerService) runReliabilityCalculation() {
	s.monitor.RunReliabilityCalculation(s.ctx)
}
