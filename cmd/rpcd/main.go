package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/DytallixHQ/Dytallix-sub005/core"
	"github.com/DytallixHQ/Dytallix-sub005/pkg/config"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if lv, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lv)
	}

	perBlock, err := core.AmountFromDecimal(cfg.EmissionPerBlock)
	if err != nil {
		log.Fatalf("config: EMISSION_PER_BLOCK: %v", err)
	}

	node, err := core.NewNode(core.NodeConfig{
		DataDir:         cfg.DataDir,
		ChainID:         cfg.ChainID,
		BlockInterval:   cfg.BlockInterval(),
		BlockMaxTx:      cfg.BlockMaxTx,
		EmptyBlocks:     cfg.EmptyBlocks,
		ProducerID:      cfg.ProducerID,
		MempoolMaxTxs:   cfg.MempoolMaxTx,
		MempoolMaxBytes: cfg.MempoolMaxBytes,
		MaxTxBytes:      cfg.MaxTxBytes,
		MinGasPrice:     cfg.MinGasPrice,
		Emission:        core.EmissionSchedule{Kind: core.ScheduleStatic, StaticPerBlock: perBlock},
		Breakdown:       core.DefaultEmissionBreakdown(),
	}, log)
	if err != nil {
		log.Fatalf("node init: %v", err)
	}
	defer node.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := node.Producer.Run(ctx); err != nil {
			log.Fatalf("producer: %v", err)
		}
	}()

	metrics := core.NewHealthMetrics(node)
	srv := NewServer(cfg.RPCBind, node, metrics, log)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
		_ = srv.Close()
	}()

	log.WithFields(logrus.Fields{
		"chain_id": cfg.ChainID,
		"bind":     cfg.RPCBind,
		"data_dir": cfg.DataDir,
	}).Info("rpcd listening")
	if err := srv.Start(); err != nil {
		log.Infof("server stopped: %v", err)
	}
}
