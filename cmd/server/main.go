package main

import (
	"github.com/blues/dcs/internal/civicrm"
	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/database"
	"github.com/blues/dcs/internal/event"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/mailer"
	"github.com/blues/dcs/internal/payment"
	"github.com/blues/dcs/internal/router"
	"github.com/blues/dcs/internal/task"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	setupLogger(cfg.Log)
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 支付渠道客户端
	providers := []logic.Provider{
		payment.NewStripeClient(cfg.Stripe),
		payment.NewPayPalClient(cfg.PayPal),
		payment.NewPayArcClient(cfg.PayArc),
	}

	// 业务逻辑装配
	donationLogic := logic.NewDonationLogic(db)
	renewalLogic := logic.NewRenewalLogic(db, donationLogic)
	refundLogic := logic.NewRefundLogic(db, donationLogic, providers)
	crmLogic := logic.NewCrmLogic(db, civicrm.New(cfg.CiviCRM))
	mail := mailer.New(cfg.Smtp)

	// 对账引擎
	engine := event.NewEngine(db, donationLogic, renewalLogic, refundLogic, mail)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, engine, refundLogic, crmLogic, mail, cfg)

	// 启动定时任务
	manager := task.Start(db, engine, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

// setupLogger 按配置初始化全局日志器
func setupLogger(cfg config.LogConfig) {
	level := logger.ParseLogLevel(cfg.GetLevel())

	var l *logger.Logger
	var err error
	if cfg.GetOutput() == "file" {
		l, err = logger.NewWithFileRotation(level, cfg.GetFile())
	} else {
		l, err = logger.New(level)
	}
	if err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	logger.SetDefaultLogger(l)
}
