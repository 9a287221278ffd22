package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/birchwood-sourdough/orders/controllers"
	"github.com/birchwood-sourdough/orders/kds"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/middlewares"
	"github.com/birchwood-sourdough/orders/services"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Admission *services.AdmissionController
	Tracker   *services.StatusTracker
	Orders    *services.OrderRepository
	Ledger    *services.CapacityLedger
	Auth      *services.AuthService
	Settings  *services.SettingsService
	Feedback  *services.FeedbackService
	Hub       *kds.Hub
	Metrics   *metrics.Metrics
	Logger    logrus.FieldLogger

	OrderLimiter   *middlewares.RateLimiter
	LoginLimiter   *middlewares.RateLimiter
	OrderThrottle  *rate.Limiter
	AllowedOrigins []string
	TrustedProxies []string
}

func SetupRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		d.Logger.WithError(err).Warn("Invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware(d.Logger))
	r.Use(d.Metrics.Middleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.AllowedOrigins))

	orderCtrl := controllers.NewOrderController(d.Admission, d.Tracker, d.Orders, d.Logger)
	capacityCtrl := controllers.NewCapacityController(d.Ledger)
	authCtrl := controllers.NewAuthController(d.Auth)
	adminCtrl := controllers.NewAdminController(d.Settings, d.Hub, d.Logger)
	feedbackCtrl := controllers.NewFeedbackController(d.Feedback)
	eventsCtrl := controllers.NewEventsController(d.Hub, d.AllowedOrigins, d.Logger)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Public
	orderGuards := []gin.HandlerFunc{}
	if d.OrderThrottle != nil {
		orderGuards = append(orderGuards, middlewares.Throttle(d.OrderThrottle, "orders_global", d.Metrics))
	}
	if d.OrderLimiter != nil {
		orderGuards = append(orderGuards, d.OrderLimiter.RateLimit())
	}
	r.POST("/orders", append(orderGuards, orderCtrl.CreateOrder)...)
	r.GET("/capacity", capacityCtrl.GetCapacity)
	r.GET("/maintenance", adminCtrl.GetMaintenance)
	r.POST("/feedback", feedbackCtrl.SubmitFeedback)
	r.GET("/feedback", feedbackCtrl.GetApprovedFeedback)

	auth := r.Group("/auth", middlewares.NoStore())
	{
		if d.LoginLimiter != nil {
			auth.POST("/login", d.LoginLimiter.RateLimit(), authCtrl.Login)
		} else {
			auth.POST("/login", authCtrl.Login)
		}
		auth.POST("/verify", authCtrl.Verify)
		auth.POST("/logout", authCtrl.Logout)
	}

	// Admin
	admin := r.Group("/", middlewares.NoStore(), middlewares.AuthMiddleware(d.Auth))
	{
		admin.GET("/orders", orderCtrl.GetAllOrders)
		admin.GET("/orders/:id", orderCtrl.GetOrderByID)
		admin.DELETE("/orders/:id", orderCtrl.DeleteOrder)
		admin.POST("/orders/:id/status", orderCtrl.UpdateOrderStatus)

		admin.PUT("/capacity/:date", capacityCtrl.UpdateCapacity)
		admin.POST("/maintenance/toggle", adminCtrl.ToggleMaintenance)

		admin.GET("/feedback/all", feedbackCtrl.GetAllFeedback)
		admin.DELETE("/feedback/:id", feedbackCtrl.DeleteFeedback)
	}

	r.GET("/ws/orders", middlewares.WebSocketAuthMiddleware(d.Auth), eventsCtrl.OrdersFeed)

	return r
}
