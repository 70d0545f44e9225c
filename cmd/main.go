package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trackerlens/adblock"
	"trackerlens/config"
	"trackerlens/effects"
	"trackerlens/engine"
	"trackerlens/eventloop"
	"trackerlens/logger"
	"trackerlens/persist"
	"trackerlens/stats"
	"trackerlens/webapi"
)

func main() {
	// 定义命令行参数
	configPath := flag.String("c", "config.yaml", "配置文件路径")
	workDir := flag.String("w", "", "工作目录")
	fetch := flag.Bool("fetch", true, "启动时下载远程规则（否则只使用本地缓存）")
	testURL := flag.String("test-url", "", "加载规则后诊断一个 URL 并退出")
	verbose := flag.Bool("v", false, "详细输出")
	help := flag.Bool("h", false, "显示帮助信息")

	flag.Parse()

	if *help {
		printHelp()
		os.Exit(0)
	}

	// 确定工作目录
	if *workDir != "" {
		if err := os.Chdir(*workDir); err != nil {
			fmt.Fprintf(os.Stderr, "错误：无法切换到工作目录 %s：%v\n", *workDir, err)
			os.Exit(1)
		}
	}

	effectiveConfigPath := *configPath
	if !filepath.IsAbs(effectiveConfigPath) {
		if wd, err := os.Getwd(); err == nil {
			effectiveConfigPath = filepath.Join(wd, effectiveConfigPath)
		}
	}

	// 加载配置（先加载配置以获取日志级别设置）
	cfg, err := config.LoadConfig(effectiveConfigPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(cfg.System.LogLevel)
	if *verbose {
		logger.SetLevel("debug")
	}
	logger.Infof("Config loaded from %s, log level %s", effectiveConfigPath, logger.GetLevel())

	rules, err := adblock.NewManager(&cfg.Rules)
	if err != nil {
		logger.Fatalf("Failed to create rule manager: %v", err)
	}

	if *testURL != "" {
		os.Exit(runTestURL(cfg, rules, *fetch, *testURL))
	}

	store, err := persist.Open(&cfg.Persist)
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.Persist.Backend, err)
	}

	loop := eventloop.New(cfg.Engine.QueueSize)
	loop.Start()

	st := stats.NewStats(&cfg.Stats)
	eng := engine.New(cfg, engine.Deps{
		Exec:   loop,
		Timers: loop,
		Store:  store,
		Stats:  st,
		Sink: effects.BadgeSinkFunc(func(handle string, count int) {
			logger.Debugf("badge %s -> %d", handle, count)
		}),
	})

	ctx := context.Background()
	if err := eng.Restore(ctx); err != nil {
		logger.Fatalf("Failed to restore state: %v", err)
	}

	// 规则集在后台构建，构建完成前所有请求视为未匹配
	loadCtx, cancelLoad := context.WithCancel(ctx)
	loadDone := make(chan struct{})
	go func() {
		defer close(loadDone)
		if _, err := eng.ReloadRules(loadCtx, rules, *fetch); err != nil {
			logger.Errorf("Initial rule load failed: %v", err)
		}
	}()

	fmt.Printf("TrackerLens started, %d rule sources, persistence: %s (%s)\n",
		len(rules.GetSources()), cfg.Persist.Backend, cfg.Persist.Path)

	// 启动 Web API 服务（可选）
	webServer := webapi.NewServer(cfg, eng, rules, st)
	webServerDone := make(chan error, 1)
	go func() {
		webServerDone <- webServer.Start()
	}()

	// 设置优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-webServerDone:
		if err != nil {
			logger.Errorf("Web API server failed: %v", err)
		} else {
			// WebAPI 关闭时只等待信号
			<-quit
		}
	}

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := webServer.Stop(shutdownCtx); err != nil {
		logger.Errorf("Failed to stop Web API server: %v", err)
	}

	cancelLoad()
	<-loadDone

	if err := eng.Close(shutdownCtx); err != nil {
		logger.Errorf("Failed to flush state: %v", err)
	}
	loop.Stop()

	logger.Info("TrackerLens gracefully stopped.")
}

// runTestURL 加载规则后诊断一个 URL，不写入任何状态
func runTestURL(cfg *config.Config, rules *adblock.Manager, fetch bool, rawURL string) int {
	ctx := context.Background()
	m := eventloop.NewManual()
	eng := engine.New(cfg, engine.Deps{
		Exec:   m,
		Timers: m,
		Store:  persist.NewFileStore(filepath.Join(os.TempDir(), "trackerlens-test-url.json")),
	})
	defer eng.Close(ctx)

	if _, err := eng.ReloadRules(ctx, rules, fetch); err != nil {
		fmt.Fprintf(os.Stderr, "错误：规则加载失败：%v\n", err)
		return 1
	}
	res, err := eng.Execute(ctx, engine.TestURL{URL: rawURL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误：%v\n", err)
		return 1
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	return 0
}

func printHelp() {
	fmt.Print(`TrackerLens - 请求过滤规则匹配服务

使用方法：
  trackerlens [选项]

选项：
  -c <路径>         配置文件路径（默认：config.yaml，不存在时自动生成）
  -w <路径>         工作目录（默认：当前目录）
  -fetch            启动时下载远程规则（默认：true，-fetch=false 只用本地缓存）
  -test-url <URL>   加载规则后诊断一个 URL 并退出
  -v                详细输出（debug 日志）
  -h                显示此帮助信息

示例：
  # 启动服务
  trackerlens -c /etc/trackerlens/config.yaml

  # 离线诊断一个 URL
  trackerlens -fetch=false -test-url https://ad.doubleclick.net/pixel
`)
}
