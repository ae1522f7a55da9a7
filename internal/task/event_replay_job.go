package task

import (
	"strings"
	"sync"
	"time"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/event"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// 单轮重放的最大事件数，避免积压时单轮跑太久
const replayBatchSize = 200

// EventReplayJob 回调事件重放任务。
// 处理失败的事件留在表里未标记processed，定期按原始报文重放；
// 报文不可恢复的事件记录错误后标记processed，不再重试
type EventReplayJob struct {
	db          *gorm.DB
	config      *config.Config
	engine      *event.Engine
	normalizers []event.Normalizer
}

// NewEventReplayJob 创建事件重放任务
func NewEventReplayJob(db *gorm.DB, cfg *config.Config, engine *event.Engine) *EventReplayJob {
	return &EventReplayJob{
		db:     db,
		config: cfg,
		engine: engine,
		normalizers: []event.Normalizer{
			event.NewStripeNormalizer(),
			event.NewPayPalNormalizer(),
			event.NewPayArcNormalizer(),
			event.NewGiveWPNormalizer(),
		},
	}
}

// GetName 获取任务名称
func (j *EventReplayJob) GetName() string {
	return "webhook_event_replay"
}

// GetSchedule 获取调度配置
func (j *EventReplayJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *EventReplayJob) Execute() {
	var events []model.WebhookEvent
	err := j.db.Where("processed = ?", false).
		Order("created_at ASC").
		Limit(replayBatchSize).
		Find(&events).Error
	if err != nil {
		logger.Error("Failed to fetch unprocessed webhook events: %v", err)
		return
	}
	if len(events) == 0 {
		return
	}

	logger.Info("Replaying %d unprocessed webhook events", len(events))

	pool, err := ants.NewPool(j.config.Task.PoolSize)
	if err != nil {
		logger.Error("Failed to create replay worker pool: %v", err)
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	replayed := 0
	var mu sync.Mutex

	for i := range events {
		record := events[i]
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if j.replay(&record) {
				mu.Lock()
				replayed++
				mu.Unlock()
			}
		}); err != nil {
			wg.Done()
			logger.Error("Failed to submit replay task for event %d: %v", record.Id, err)
		}
	}
	wg.Wait()

	logger.Info("Webhook event replay completed, succeeded: %d/%d", replayed, len(events))
}

// replay 重放单个事件。返回本次是否处理成功
func (j *EventReplayJob) replay(record *model.WebhookEvent) bool {
	normalizer := j.normalizerFor(record.Provider)
	if normalizer == nil {
		logger.Warn("No normalizer for provider %s, event %d skipped", record.Provider, record.Id)
		return false
	}

	ev, err := normalizer.Normalize([]byte(record.Payload))
	if err != nil || ev == nil {
		// 报文不可恢复，标记为已处理并保留错误信息
		message := "报文不再可解析"
		if err != nil {
			message = err.Error()
		}
		j.markUnrecoverable(record, message)
		return false
	}
	ev.Raw = []byte(record.Payload)

	if _, err := j.engine.Handle(ev); err != nil {
		if logic.IsPermanent(err) {
			// 不可恢复的业务失败留在队列里只会堵住后面的事件
			logger.Warn("Permanent failure replaying event %d: %v", record.Id, err)
			j.markUnrecoverable(record, err.Error())
		} else {
			logger.Info("Transient failure replaying event %d, will retry: %v", record.Id, err)
		}
		return false
	}
	return true
}

// normalizerFor 按存储的渠道标识定位解析器。
// GiveWP事件的渠道标识可能带网关后缀（givewp_stripe等），按前缀匹配
func (j *EventReplayJob) normalizerFor(provider string) event.Normalizer {
	for _, n := range j.normalizers {
		if provider == n.Provider() || strings.HasPrefix(provider, n.Provider()+"_") {
			return n
		}
	}
	return nil
}

func (j *EventReplayJob) markUnrecoverable(record *model.WebhookEvent, message string) {
	now := time.Now()
	updates := map[string]interface{}{
		"processed":        true,
		"processing_error": message,
		"processed_at":     &now,
	}
	if err := j.db.Model(record).Updates(updates).Error; err != nil {
		logger.Error("Failed to mark event %d unrecoverable: %v", record.Id, err)
	}
}
