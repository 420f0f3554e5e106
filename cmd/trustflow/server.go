package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/trustflow"
	"github.com/BaSui01/trustflow/approval"
	"github.com/BaSui01/trustflow/config"
	"github.com/BaSui01/trustflow/internal/cache"
	"github.com/BaSui01/trustflow/internal/database"
	"github.com/BaSui01/trustflow/ledger"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 TrustFlow 的主服务进程
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	sys   *trustflow.System
	cache *cache.Manager
	db    *database.Pool
}

// NewServer 按配置装配所有组件
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	opts := []trustflow.Option{
		trustflow.WithConfig(cfg),
		trustflow.WithLogger(logger),
	}

	// 审批存储：redis 后端使用共享缓存客户端
	if cfg.Approval.Store == "redis" {
		mgr, err := cache.NewManager(cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init cache manager: %w", err)
		}
		s.cache = mgr
		mgr.StartHealthCheck(30 * time.Second)
		opts = append(opts, trustflow.WithApprovalStore(
			approval.NewRedisStore(mgr.Client(), cfg.Redis.KeyPrefix)))
		logger.Info("Approval store: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Info("Approval store: memory")
	}

	// 账本存储：配置了数据库驱动时使用 GORM 后端
	if cfg.Database.Driver != "" {
		pool, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.db = pool
		pool.StartHealthCheck(30 * time.Second)

		store, err := ledger.NewGormStore(pool.DB())
		if err != nil {
			return nil, fmt.Errorf("failed to init ledger store: %w", err)
		}
		opts = append(opts, trustflow.WithLedgerStore(store))
		logger.Info("Ledger store: gorm", zap.String("driver", cfg.Database.Driver))
	} else {
		logger.Info("Ledger store: memory")
	}

	sys, err := trustflow.New(opts...)
	if err != nil {
		return nil, err
	}
	s.sys = sys

	return s, nil
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动调度循环与 HTTP 端点，阻塞直到收到退出信号
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.sys.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)

	// 事件总线消费：将组件事件落日志
	g.Go(func() error {
		s.drainEvents(ctx)
		return nil
	})

	// Metrics / 健康检查端点
	var httpServer *http.Server
	if s.cfg.Metrics.Enabled {
		httpServer = s.newHTTPServer()
		g.Go(func() error {
			s.logger.Info("Metrics server started", zap.String("addr", s.cfg.Metrics.ListenAddr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	<-ctx.Done()
	s.logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		cancel()
	}

	if err := s.sys.Stop(); err != nil {
		s.logger.Error("Coordinator shutdown error", zap.Error(err))
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Database shutdown error", zap.Error(err))
		}
	}

	err := g.Wait()
	s.logger.Info("Graceful shutdown completed")
	return err
}

// drainEvents 消费事件总线并记录结构化日志
func (s *Server) drainEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.sys.Events.Events():
			if !ok {
				return
			}
			s.logger.Info("event",
				zap.String("event_type", string(event.Type())),
				zap.Time("event_time", event.Timestamp()),
				zap.Any("event", event),
			)
		}
	}
}

// =============================================================================
// 🌐 HTTP 端点
// =============================================================================

func (s *Server) newHTTPServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", handleVersion)

	return &http.Server{
		Addr:         s.cfg.Metrics.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"coordinator": "ok"}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["cache"] = "ok"
		}
	}
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(checks)
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}
