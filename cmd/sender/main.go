package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elitestate/estate-server/internal/logger"
	"github.com/elitestate/estate-server/internal/notify"
	"github.com/elitestate/estate-server/internal/rabbit"
	"github.com/elitestate/estate-server/internal/storagebuilder"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/sender_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

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

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to connect to rabbit: %v", err)
		return
	}
	defer r.Close()

	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		stor.Close(ctx)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	dispatcher := notify.NewDispatcher(stor)

	log.Info("sender is running...")

	err = r.Consume(ctx, func(msg amqp.Delivery) {
		m := rabbit.Message{}
		if err := json.Unmarshal(msg.Body, &m); err != nil {
			log.Errorf("failed to parse message: %v", err)
			return
		}
		if err := dispatcher.Dispatch(ctx, m); err != nil {
			log.Errorf("failed to dispatch reminder %s: %v", m.ReminderID, err)
		}
	})
	if err != nil {
		log.Errorf("failed to consume: %v", err)
	}
}
