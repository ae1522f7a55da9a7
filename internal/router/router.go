package router

import (
	"crypto/subtle"
	"net/http"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/event"
	"github.com/blues/dcs/internal/handler"
	"github.com/blues/dcs/internal/logic"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(db *gorm.DB, engine *event.Engine, refundLogic *logic.RefundLogic, crmLogic *logic.CrmLogic, mailer event.Mailer, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "donation-collection-service",
		})
	})

	donationHandler := handler.NewDonationHandler(db, refundLogic, crmLogic, mailer)
	campaignHandler := handler.NewCampaignHandler(db)
	subscriptionHandler := handler.NewSubscriptionHandler(refundLogic)
	webhookHandler := handler.NewWebhookHandler(engine, cfg.GiveWP)

	// 公开API
	v1 := r.Group("/api/v1")
	{
		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.GET("/:slug", campaignHandler.GetCampaignBySlug)
			campaigns.GET("/:slug/donations", campaignHandler.GetCampaignDonations)
			campaigns.GET("/:slug/stats", campaignHandler.GetCampaignStats)
		}

		donations := v1.Group("/donations")
		{
			donations.POST("/confirm", donationHandler.ConfirmDonation)
			donations.GET("/recent", donationHandler.GetRecentDonations)
		}
	}

	// 渠道回调
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", webhookHandler.HandleStripe)
		webhooks.POST("/paypal", webhookHandler.HandlePayPal)
		webhooks.POST("/payarc", webhookHandler.HandlePayArc)
		webhooks.POST("/givewp", webhookHandler.HandleGiveWP)
	}

	// 管理端API，令牌校验
	admin := r.Group("/admin/api/v1")
	admin.Use(adminAuthMiddleware(cfg.Server.AdminToken))
	{
		donations := admin.Group("/donations")
		{
			donations.GET("", donationHandler.GetDonations)
			donations.GET("/:id", donationHandler.GetDonation)
			donations.POST("", donationHandler.CreateManualDonation)
			donations.DELETE("/:id", donationHandler.DeleteDonation)
			donations.POST("/:id/refund", donationHandler.RefundDonation)
			donations.POST("/:id/sync", donationHandler.SyncDonation)
		}

		campaigns := admin.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.GetAllCampaigns)
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.PUT("/:id", campaignHandler.UpdateCampaign)
			campaigns.DELETE("/:id", campaignHandler.DeactivateCampaign)
		}

		subscriptions := admin.Group("/subscriptions")
		{
			subscriptions.POST("/:subscriptionId/cancel", subscriptionHandler.CancelSubscription)
			subscriptions.PUT("/:subscriptionId/amount", subscriptionHandler.UpdateSubscriptionAmount)
		}
	}

	return r
}

// 管理端令牌中间件。令牌未配置时拒绝所有管理端请求
func adminAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Admin-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "管理端令牌无效"})
			return
		}
		c.Next()
	}
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Admin-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
