// Команда inference-server публикует корреляционный бэкенд по gRPC,
// чтобы бот и вычисления могли работать в разных процессах.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"track-bot/config"
	"track-bot/internal/infrastructure/inference"
)

func main() {
	addr := flag.String("listen", ":50051", "gRPC listen address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	backend, err := inference.NewCorrelation(cfg.Tracker)
	if err != nil {
		logger.Fatal("create correlation backend", zap.Error(err))
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", *addr), zap.Error(err))
	}
	srv := grpc.NewServer(inference.ServerOptions()...)
	inference.RegisterInferenceServer(srv, backend, backend, logger.Named("inference"))

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		srv.GracefulStop()
	}()

	logger.Info("inference server is running", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
