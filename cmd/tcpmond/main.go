package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/tcpmond/internal/api"
	"github.com/dmdmdm-nz/tcpmond/internal/netmon"
	"github.com/dmdmdm-nz/tcpmond/internal/runtime"
	"github.com/dmdmdm-nz/tcpmond/internal/tcpmon"
	"github.com/dmdmdm-nz/tcpmond/pkg/cli"
)

func main() {
	// Parse command line flags
	cfg := cli.ParseFlags()

	// Configure logging
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FullTimestamp:   true,
	})

	log.Infof("Config: Host=%s", cfg.Host)
	log.Infof("Config: Port=%d", cfg.Port)
	log.Infof("Config: PoolSize=%d", cfg.PoolSize)
	log.Infof("Config: LogLevel=%s", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stack := tcpmon.NewStack()
	netmonSvc := netmon.NewService(stack)
	apiSvc := api.NewService(cfg.Host, cfg.Port, stack, netmonSvc)

	// Register every interface that is currently up so connections can
	// bind to them and the watcher has something to tear down.
	registerDevices(netmonSvc, cfg.PoolSize)

	// Start in dependency order: netmon → api
	super := runtime.NewSupervisor()
	super.Add("netmon", func(ctx context.Context) error { return netmonSvc.Start(ctx) }, netmonSvc.Close)
	super.Add("api", func(ctx context.Context) error { return apiSvc.Start(ctx) }, apiSvc.Close)

	if err := super.Start(ctx); err != nil {
		log.WithError(err).Error("Supervisor start failed")
		os.Exit(1)
	}
	if err := super.Wait(ctx); err != nil {
		log.WithError(err).Error("Supervisor wait failed")
		os.Exit(1)
	}

	if err := stack.Close(); err != nil {
		log.WithError(err).Warn("Failed to close stack")
	}
}

func registerDevices(svc *netmon.Service, poolSize int) {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.WithError(err).Warn("Failed to enumerate network interfaces")
		return
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		svc.EnsureDevice(iface.Name, iface.Index, poolSize)
	}
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
