package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/makinje16/AirSignals/internal/app"
	"github.com/makinje16/AirSignals/internal/shared/config"
	"github.com/makinje16/AirSignals/internal/shared/logger"
	"github.com/makinje16/AirSignals/internal/shared/types"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	localhost := flag.Bool("localhost", true, "true if running on localhost false if on public ip")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "airsignals.ini")

	// 1. 加载 .ini 配置
	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}
	// 命令行显式指定 -localhost 时覆盖配置文件
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "localhost" {
			cfg.ServerConf.Localhost = *localhost
		}
	})

	// 2. 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 3. 创建并运行服务器
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appServer := app.New(cfg)
	if err := appServer.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Signaling server failed")
	}
}
