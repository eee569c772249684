// Command rtu-bridge exposes a serial RS-485 bus on a TCP port so a poller can reach it
// with the rtu_tcp transport.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"edgepoll/edge_module/connWrap/uart"
	"edgepoll/edge_module/global"

	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	addr := flag.String("l", ":7000", "listen tcp addr. Check https://pkg.go.dev/net#Listen")
	portName := flag.String("s", "/dev/ttyUSB0", "serial port name")
	var mode uart.Mode
	flag.IntVar(&mode.BaudRate, "r", 9600, "baud rate")
	flag.IntVar(&mode.DataBits, "d", 8, "data bits")
	flag.StringVar(&mode.Parity, "parity", "None", "parity (None, Odd, Even)")
	flag.IntVar(&mode.StopBits, "stop", 1, "stop bits")
	debug := flag.Bool("debug", false, "log data")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	logger, err := global.NewLogger(level, "console")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	port, err := uart.NewUart(*portName, 100*time.Millisecond, mode)
	if err != nil {
		logger.Fatal("serial port", zap.Error(err))
	}
	defer func() { _ = port.Close() }()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	logger.Info("listening", zap.Stringer("addr", ln.Addr()), zap.String("port", *portName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	b := &bridge{port: port, debug: *debug, logger: logger}
	if err = b.serve(ctx, ln); err != nil {
		logger.Error("serve", zap.Error(err))
	}
}
