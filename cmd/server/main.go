// ZhuSu 住宿分配引擎服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/zhusu/zhusu/internal/config"
	"github.com/zhusu/zhusu/internal/database"
	"github.com/zhusu/zhusu/internal/handler"
	"github.com/zhusu/zhusu/internal/metrics"
	"github.com/zhusu/zhusu/internal/middleware"
	"github.com/zhusu/zhusu/internal/repository"
	"github.com/zhusu/zhusu/internal/rulecatalog"
	"github.com/zhusu/zhusu/internal/security"
	"github.com/zhusu/zhusu/pkg/engine"
	"github.com/zhusu/zhusu/pkg/logger"
	"github.com/zhusu/zhusu/pkg/planner"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	format := "console"
	if cfg.IsProduction() {
		format = "json"
	}
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: format,
	})

	// 打印版本信息
	fmt.Printf("ZhuSu 住宿分配引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 连接数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("数据库连接失败")
	}
	defer db.Close()

	// 定期上报连接池指标
	go reportDBStats(db)

	// 组装引擎
	store := repository.NewStore(db)
	eng := engine.New(store)
	eng.SetMaxRetries(cfg.Planner.MaxRetries)
	eng.SetDefaultWeights(planner.Weights{
		Sex:           cfg.Planner.WeightSex,
		RoomType:      cfg.Planner.WeightRoomType,
		Floor:         cfg.Planner.WeightFloor,
		Accessibility: cfg.Planner.WeightAccessibility,
	})

	// 创建处理器
	assignmentHandler := handler.NewAssignmentHandler(eng)
	statsHandler := handler.NewStatsHandler()

	// 创建 HTTP 服务器
	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	// 健康检查端点（含数据库探活）
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := db.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","service":"zhusu","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"zhusu"}`))
	})

	// 版本信息端点
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API v1 端点
	// ========================================

	// API 根路由
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "ZhuSu 住宿分配引擎 API v1",
			"endpoints": {
				"assignments": {
					"validate": "POST /api/v1/assignments/validate",
					"assign": "POST /api/v1/assignments/assign",
					"bulk": "POST /api/v1/assignments/bulk",
					"auto": "POST /api/v1/assignments/auto"
				},
				"rules": {
					"library": "GET /api/v1/rules/library"
				},
				"stats": {
					"occupancy": "POST /api/v1/stats/occupancy"
				}
			}
		}`))
	})

	// 兼容性校验 API
	mux.HandleFunc("/api/v1/assignments/validate", assignmentHandler.Validate)

	// 单个分配 API
	mux.HandleFunc("/api/v1/assignments/assign", assignmentHandler.Assign)

	// 批量分配 API
	mux.HandleFunc("/api/v1/assignments/bulk", assignmentHandler.Bulk)

	// 自动分配 API
	mux.HandleFunc("/api/v1/assignments/auto", assignmentHandler.Auto)

	// 规则库 API - 返回引擎支持的所有规则及权重参数定义
	mux.HandleFunc("/api/v1/rules/library", handleRuleLibrary)

	// 入住统计 API
	mux.HandleFunc("/api/v1/stats/occupancy", statsHandler.Occupancy)

	// ========================================
	// 监控端点
	// ========================================

	// Prometheus 指标端点
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	// 中间件执行顺序：requestID -> recovery -> rateLimit -> cors -> securityHeaders -> [auth] -> logging -> handler
	var root http.Handler = loggingMiddleware(mux)
	if cfg.API.AuthEnabled {
		keyManager := security.NewAPIKeyManager()
		// 启动时签发一把全权密钥，供运维首次接入
		bootstrap, err := keyManager.GenerateKey("bootstrap", "启动密钥", []string{"*"}, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("启动密钥生成失败")
		}
		logger.Info().Str("api_key", bootstrap.Key).Msg("已签发启动密钥")
		authLimiter := security.NewRateLimiter(cfg.API.RateLimit, time.Minute)
		root = middleware.AuthMiddleware(&middleware.AuthConfig{
			APIKeyManager:   keyManager,
			RateLimiter:     authLimiter,
			SkipPaths:       []string{"/health", "/version", cfg.Metrics.Path},
			EnableRateLimit: true,
		})(root)
	}
	root = middleware.SecurityHeadersMiddleware(root)
	if cfg.API.CORS.Enabled {
		root = corsMiddleware(root)
	}
	root = rateLimitMiddleware(cfg.API.RateLimit)(root)
	root = middleware.RecoveryMiddleware(root)
	root = requestIDMiddleware(root)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.App.Port)).
			Str("api_docs", fmt.Sprintf("http://localhost:%d/api/v1/", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}

// reportDBStats 定期上报数据库连接池状态
func reportDBStats(db *database.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := db.Stats()
		metrics.SetDBConnections("open", stats.OpenConnections)
		metrics.SetDBConnections("in_use", stats.InUse)
		metrics.SetDBConnections("idle", stats.Idle)
	}
}

// requestIDMiddleware 请求ID追踪中间件
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), "request_id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware 日志中间件
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID, _ := r.Context().Value("request_id").(string)

		// 包装ResponseWriter以捕获状态码
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Msg("请求处理")

		metrics.RecordRequestMetrics(r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

// responseWriter 包装ResponseWriter以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// rateLimitMiddleware 限流中间件（按客户端地址的滑动窗口，每分钟计数）
func rateLimitMiddleware(limit int) func(http.Handler) http.Handler {
	limiter := security.NewRateLimiter(limit, time.Minute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !limiter.Allow(host) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":   true,
					"code":    "RATE_LIMITED",
					"message": "请求过于频繁，请稍后重试",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware CORS中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleRuleLibrary 处理规则库请求 - 返回引擎实际支持的所有规则定义
func handleRuleLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	response := rulecatalog.LibraryResponse{Library: rulecatalog.GetLibrary()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
