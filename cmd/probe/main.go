package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/makinje16/AirSignals/internal/probe"
	"github.com/makinje16/AirSignals/internal/shared/logger"
	"github.com/makinje16/AirSignals/internal/shared/types"
)

// 手动测试工具：连接本地 signaling server，发送一句问候并打印服务器返回的所有消息。
func main() {
	if err := logger.Init(types.LogConf{Level: "info"}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := probe.New()
	if err := p.Run(ctx); err != nil {
		logger.Error().Err(err).Str("endpoint", p.Endpoint()).Msg("Probe failed")
		stop()
		os.Exit(1)
	}
}
