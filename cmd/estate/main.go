package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elitestate/estate-server/internal/app"
	"github.com/elitestate/estate-server/internal/auth"
	"github.com/elitestate/estate-server/internal/blob"
	"github.com/elitestate/estate-server/internal/logger"
	"github.com/elitestate/estate-server/internal/scheduler"
	internalhttp "github.com/elitestate/estate-server/internal/server/http"
	"github.com/elitestate/estate-server/internal/storagebuilder"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "version" {
		printVersion()
		return
	}

	_ = godotenv.Load()

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var uploader blob.Uploader
	if config.Blob.Bucket != "" {
		uploader, err = blob.NewS3Store(ctx, config.Blob)
		if err != nil {
			log.Errorf("failed to start %v", err)
			return
		}
	}

	tokens := auth.NewManager(config.Auth)
	authService := auth.NewService(stor, tokens)
	reminders := scheduler.New(stor, scheduler.DefaultGrace)
	estate := app.New(stor, reminders)
	server := internalhttp.NewServer(config.HTTPServer, estate, authService, tokens, uploader)

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			log.Error("failed to stop http server: " + err.Error())
		}
	}()

	log.Info("estate server is running...")

	if err := server.Start(ctx); err != nil {
		log.Error("failed to start http server: " + err.Error())
		cancel()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		err := stor.Close(ctx)
		if err != nil {
			log.Errorf("failed to close storage: %v", err)
		}
		os.Exit(1) //nolint:gocritic
	}
	ctx, cancel = context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()
	err = stor.Close(ctx)
	if err != nil {
		log.Errorf("failed to close storage: %v", err)
	}
}
