package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"market-mirror/internal/session"
	"market-mirror/pkg/types"
)

// DefaultInterval 自动刷新间隔
const DefaultInterval = 30 * time.Second

// Refresher 执行一次刷新周期
type Refresher interface {
	Refresh(ctx context.Context) (*types.Snapshot, error)
}

// Listener 接收每次成功刷新的快照
type Listener func(*types.Snapshot)

// Scheduler 调度器：启动时立即刷新，之后按固定间隔或手动触发刷新
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	trigger   chan struct{}

	mutex     sync.RWMutex
	listeners []Listener
}

func NewScheduler(refresher Refresher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		trigger:   make(chan struct{}, 1),
	}
}

// AddListener 注册快照监听器
func (s *Scheduler) AddListener(listener Listener) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Trigger 请求尽快刷新一次，多次触发会合并
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start 运行调度循环，直到ctx被取消
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("🚀 调度器启动", zap.Duration("interval", s.interval))

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("📴 调度器已停止")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		case <-s.trigger:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	snapshot, err := s.refresher.Refresh(ctx)
	switch {
	case errors.Is(err, session.ErrRefreshInFlight):
		zap.L().Debug("⏭️ 上一次刷新尚未完成，跳过")
		return
	case errors.Is(err, session.ErrStaleRefresh):
		zap.L().Debug("⏭️ 刷新期间选择已变化，结果已丢弃")
		return
	case err != nil:
		zap.L().Error("❌ 刷新失败", zap.Error(err))
		return
	}

	s.mutex.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mutex.RUnlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}
