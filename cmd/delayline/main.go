package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/matst80/delayline/internal/delay"
	"github.com/matst80/delayline/internal/obs"
	"github.com/matst80/delayline/internal/relay"
)

func main() {
	start := time.Now()
	if err := loadConfig(); err != nil {
		obs.Error("config", obs.Fields{"err": err.Error()})
		usage()
		os.Exit(1)
	}
	if cfg.Debug {
		obs.EnableDebug(true)
	}

	engine, err := delay.NewEngine(cfg.InitialDelay)
	if err != nil {
		obs.Error("config", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}

	adminAddr := ""
	if cfg.AdminPort != 0 {
		adminAddr = ":" + strconv.Itoa(cfg.AdminPort)
	}
	r := relay.New(relay.Config{
		ListenAddr:  ":" + strconv.Itoa(cfg.IncomingPort),
		BackendAddr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.OutgoingPort)),
		AdminAddr:   adminAddr,
		ChunkSize:   cfg.ChunkSize,
	}, engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.Info("relay.start", obs.Fields{
		"incoming": cfg.IncomingPort,
		"outgoing": cfg.OutgoingPort,
		"delay_ms": float64(cfg.InitialDelay) / float64(time.Millisecond),
		"admin":    cfg.AdminPort,
		"chunk":    cfg.ChunkSize,
	})
	if err := r.Start(ctx); err != nil {
		// backend unreachable or listen failure: fatal, no retry
		obs.Error("relay.startup", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	if cfg.MetricsAddr != "" {
		go startMetricsServer(cfg.MetricsAddr, r)
	}
	obs.Info("relay.ready", obs.Fields{"listen": r.Addr(), "admin": r.AdminAddr()})

	<-ctx.Done()
	obs.Info("relay.shutdown.signal", obs.Fields{})
	r.Close()
	<-r.Done()
	obs.Info("relay.shutdown.complete", obs.Fields{"uptime_seconds": time.Since(start).Seconds()})
}
