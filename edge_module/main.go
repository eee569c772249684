package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"edgepoll/edge_module/controller"
	"edgepoll/edge_module/global"
	"edgepoll/pkg"
	"edgepoll/pkg/project"

	"go.uber.org/zap"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Llongfile)
}

func main() {
	wkDir := flag.String("dir", ".", "working dir")
	flag.StringVar(&global.Config.LogLevel, "log", "", "log level, overrides the config file")
	cfgName := flag.String("config", "config.json", "Config file")
	flag.Parse()

	pkg.Must(os.Chdir(*wkDir))

	global.Init(*cfgName)
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("update running status", zap.String("status", "started"))
	err := controller.Run(ctx)
	project.CallReleaseFunc()
	if err != nil {
		zap.L().Error("update running status", zap.String("status", "aborted"), zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
	zap.L().Info("update running status", zap.String("status", "shutdown"))
}
