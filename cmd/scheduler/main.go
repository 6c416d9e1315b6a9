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
	"github.com/elitestate/estate-server/internal/rabbit"
	"github.com/elitestate/estate-server/internal/scheduler"
	"github.com/elitestate/estate-server/internal/storagebuilder"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

var configFile string

func newMessage(due scheduler.Due) rabbit.Message {
	return rabbit.Message{
		ReminderID:    due.ID,
		EventID:       due.EventID,
		EventTitle:    due.EventTitle,
		OffsetMinutes: due.OffsetMinutes,
		FireAt:        due.FireAt,
		OwnerID:       due.OwnerID,
		Overdue:       due.Overdue,
	}
}

func init() {
	flag.StringVar(&configFile, "config", "./configs/scheduler_config.yaml", "Path to configuration file")
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

	sched := scheduler.New(stor, config.Scheduler.Grace)

	scan := func() {
		// Re-derive first so edits made since the last pass are armed with
		// their new fire times before the due check.
		if err := sched.SyncAll(ctx); err != nil {
			log.Errorf("failed to sync reminders: %v", err)
			return
		}
		due, err := sched.Scan(ctx)
		if err != nil {
			log.Errorf("failed to scan reminders: %v", err)
			return
		}
		for _, d := range due {
			log.Debugf("publish reminder: %v", d.DedupeKey())
			data, _ := json.Marshal(newMessage(d))
			if err := r.Publish(data); err != nil {
				log.Errorf("failed to publish reminder %s: %v", d.ID, err)
			}
		}
	}

	// In-process timers do not survive restarts; the first pass re-arms
	// everything from the store, late reminders included.
	scan()

	c := cron.New()
	if _, err := c.AddFunc(config.Scheduler.ScanCron, scan); err != nil {
		log.Errorf("bad scan schedule %q: %v", config.Scheduler.ScanCron, err)
		return
	}
	_, err = c.AddFunc(config.Scheduler.CleanupCron, func() {
		if err := sched.Cleanup(ctx, config.Scheduler.Retention); err != nil {
			log.Errorf("failed to clean up old events: %v", err)
		}
	})
	if err != nil {
		log.Errorf("bad cleanup schedule %q: %v", config.Scheduler.CleanupCron, err)
		return
	}
	c.Start()
	defer c.Stop()

	log.Info("scheduler is running...")
	<-ctx.Done()
}
