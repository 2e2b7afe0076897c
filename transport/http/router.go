package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletgate/config"
	"github.com/layer-3/walletgate/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// RouterConfig holds the transport settings of the router
type RouterConfig struct {
	Cookies    config.CookieConfig
	SessionTTL time.Duration
	RateLimit  float64
	RateBurst  int

	// TrustedProxies may set X-Forwarded-For; nil trusts none and uses the peer address
	TrustedProxies []string

	// Gatherer is served at /metrics when set
	Gatherer prometheus.Gatherer
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cfg RouterConfig) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), RequestLogger())

	handlers := NewAuthHandlers(authService, cfg.Cookies, cfg.SessionTTL)
	limited := RateLimitMiddleware(NewIPLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst, limiterIdleTTL))

	router.GET("/nonce", limited, handlers.Nonce)

	auth := router.Group("/auth")
	auth.Use(limited)
	{
		auth.POST("/login", handlers.Login)
		auth.POST("/complete", handlers.Complete)
		auth.POST("/logout", handlers.Logout)
		auth.GET("/me", SessionMiddleware(authService, cfg.Cookies.SessionName), handlers.Me)
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	return router, nil
}
