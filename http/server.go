// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         int
	Timeout      time.Duration
	MaxBodyBytes int64
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:         8501,
		Timeout:      30 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
}

// NewHandler 注册所有路由并套上中间件链
func NewHandler(config ServerConfig) http.Handler {
	mux := http.NewServeMux()

	// 注册所有处理器
	RegisterPageHandlers(mux)
	RegisterHandlers(mux)
	RegisterAPIHandlers(mux)

	chain := Chain(
		RecoveryMiddleware,                         // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware,                           // 2. 日志中间件
		SecurityHeadersMiddleware,                  // 3. 安全头中间件
		TimeoutMiddleware(config.Timeout),          // 4. 超时中间件（跳过websocket）
		RequestSizeMiddleware(config.MaxBodyBytes), // 5. 请求大小限制
	)

	return chain(mux)
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           NewHandler(config),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       config.Timeout,
			IdleTimeout:       120 * time.Second,
		},
		config: config,
		logger: serverLogger(),
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
