package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/inspedralbes/tr2-reptes-tr2-grup3-sub000/pkg/redis"
)

// 事件类型
const (
	EventAllocationRun       = "allocation.run"
	EventAllocationPublished = "allocation.published"
	EventPhaseAdvanced       = "period.phase_advanced"
)

// Event 分配流程事件，由外部通知服务消费
type Event struct {
	Type     string      `json:"type"`
	PeriodID string      `json:"period_id"`
	At       time.Time   `json:"at"`
	Payload  interface{} `json:"payload,omitempty"`
}

// Notifier 事件发布接口；发布失败只记日志，不影响业务结果
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

type redisNotifier struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

// NewNotifier rdb 为 nil 时返回空实现
func NewNotifier(rdb *redis.Client, channel string, logger *zap.Logger) Notifier {
	if rdb == nil {
		return nopNotifier{}
	}
	return &redisNotifier{rdb: rdb, channel: channel, logger: logger}
}

func (n *redisNotifier) Notify(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("序列化事件失败", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := n.rdb.Publish(ctx, n.channel, payload); err != nil {
		n.logger.Warn("发布事件失败", zap.String("type", evt.Type), zap.String("period_id", evt.PeriodID), zap.Error(err))
	}
}
