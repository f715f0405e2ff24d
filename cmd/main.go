package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chatrelay-backend/internal/backend"
	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/handler"
	"chatrelay-backend/internal/service"
	"chatrelay-backend/internal/storage"
	"chatrelay-backend/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// 初始化存储
	store := newStorage(cfg)
	if err := store.Init(); err != nil {
		logger.Fatalf("存储初始化失败: %v", err)
	}
	defer store.Close()

	// 初始化后端会话客户端
	opener, err := backend.NewClient(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("后端初始化失败: %v", err)
	}

	// 初始化服务与处理器
	chatService := service.NewChatService(cfg, opener, store)
	chatHandler := handler.NewChatHandler(chatService)

	// 创建路由
	router := handler.NewRouter(cfg, chatHandler)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// 启动服务器
	go func() {
		logger.Infof("服务器启动在端口 %d, 后端: %s", cfg.Server.Port, cfg.Backend.Provider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	if err := server.Close(); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	logger.Info("服务器已关闭")
}

func newStorage(cfg *config.Config) storage.Storage {
	switch cfg.Storage.Type {
	case "disk":
		return storage.NewDiskStorage(cfg.Storage.DataDir, cfg.Storage.CacheSize)
	default:
		return storage.NewMemoryStorage()
	}
}
