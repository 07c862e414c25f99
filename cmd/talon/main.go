package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"talon/internal/app"
	"talon/internal/config"
	"talon/internal/logger"
	"talon/internal/store/gormstore"
	"talon/internal/store/importer"
)

func main() {
	// .env 缺失不算错误，密钥也可以直接走环境变量。
	_ = godotenv.Load()

	cfgPath := flag.String("config", defaultConfigPath(), "配置文件路径")
	importPath := flag.String("import", "", "导入旧版 JSON 状态文件后退出")
	flag.Parse()

	watcher, err := config.Watch(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	cfg := watcher.Current()

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，监听=%s）", cfg.App.Env, cfg.App.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *importPath != "" {
		runImport(ctx, cfg, *importPath)
		return
	}

	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	application.SubscribeConfig(watcher)

	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("talon 已退出")
}

// runImport 只做一次性数据迁移，不启动任何后台任务。
func runImport(ctx context.Context, cfg *config.Config, path string) {
	store, err := gormstore.New(cfg.Store.Path)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	defer store.Close()

	res, err := importer.Run(ctx, store, path)
	if err != nil {
		log.Fatalf("导入失败: %v", err)
	}
	logger.Infof("导入完成：成交 %d 条，余额快照 %d 条（备份文件=%v）",
		res.Trades, res.BalanceSnapshots, res.UsedBackup)
}

func defaultConfigPath() string {
	if p := os.Getenv("TALON_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
