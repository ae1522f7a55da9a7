package task

import (
	"time"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// CampaignStatsJob 活动已筹金额缓存刷新任务
type CampaignStatsJob struct {
	db            *gorm.DB
	config        *config.Config
	campaignLogic *logic.CampaignLogic
}

// NewCampaignStatsJob 创建活动统计刷新任务
func NewCampaignStatsJob(db *gorm.DB, cfg *config.Config, campaignLogic *logic.CampaignLogic) *CampaignStatsJob {
	return &CampaignStatsJob{
		db:            db,
		config:        cfg,
		campaignLogic: campaignLogic,
	}
}

// GetName 获取任务名称
func (j *CampaignStatsJob) GetName() string {
	return "campaign_stats_refresher"
}

// GetSchedule 获取调度配置
func (j *CampaignStatsJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *CampaignStatsJob) Execute() {
	var campaigns []model.Campaign
	if err := j.db.Where("active = ?", true).Find(&campaigns).Error; err != nil {
		logger.Error("Failed to fetch campaigns for stats refresh: %v", err)
		return
	}

	for _, campaign := range campaigns {
		if err := j.campaignLogic.RefreshRaisedAmount(campaign.Id); err != nil {
			logger.Error("Failed to refresh raised amount for campaign %d: %v", campaign.Id, err)
		}
	}
}
