package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"subpool/internal/service/web"
	"subpool/internal/shared/config"
	"subpool/internal/shared/logger"
	"subpool/internal/shared/types"
	"subpool/nodepool"
	"subpool/nodepool/checker"
	"subpool/nodepool/storage"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "subpool.ini")
	sourcesPath := filepath.Join(*configDir, "sources.json")

	// 1. 加载 .ini 行为配置
	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 1.1 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 2. 组装存储与检查器
	dataFile := cfg.PoolConf.DataFile
	if dataFile == "" {
		dataFile = filepath.Join(*configDir, "nodes.json")
	}
	st := storage.NewFileStorage(dataFile)
	chk := checker.New(
		time.Duration(cfg.PoolConf.CheckTimeoutSeconds)*time.Second,
		cfg.PoolConf.CheckConcurrency,
	)

	// 3. 创建节点池管理器并启动调度
	mgr := nodepool.NewManager(cfg, sourcesPath, st, chk)

	hub := web.NewHub()
	go hub.Run()
	mgr.SetNotify(hub.BroadcastPoolUpdate)

	mgr.Start()

	// 4. 启动 Web 服务
	var wg sync.WaitGroup
	web.StartServer(&wg, cfg, mgr, hub)

	logger.Info().Msg("subpool is running. Press Ctrl+C to exit.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, stopping...")
	mgr.Stop()
}
