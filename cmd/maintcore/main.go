package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"maintcore/config"
	"maintcore/dedupe"
	"maintcore/engine"
	"maintcore/messaging"
	"maintcore/notify"
	"maintcore/store"
	"maintcore/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "maintcore.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Println("maintcore", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	debugFn := func(string, ...any) {}
	if *debug || cfg.Log.Debug {
		debugFn = func(format string, args ...any) { log.Printf("debug: "+format, args...) }
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("maintcore: database open (%s)", cfg.Database.Driver)

	clock := time.Now

	// Processed anomaly ids
	processed := dedupe.Set(dedupe.NewMemorySet())
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		rs := dedupe.NewRedisSet(redisClient, cfg.Redis.TTL, clock)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rs.Ping(ctx); err != nil {
			log.Printf("maintcore: redis not available (%v), processed ids kept in memory only", err)
		} else {
			log.Printf("maintcore: redis connected (%s)", cfg.Redis.Address)
		}
		cancel()
		processed = dedupe.NewLayered(rs)
	}

	// Notification sinks
	wsHub := www.NewNotificationHub()
	defer wsHub.Close()
	sinks := []notify.Sink{wsHub}
	if cfg.Notify.NATSURL != "" {
		natsSink, err := notify.NewNATSSink(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix)
		if err != nil {
			log.Printf("maintcore: nats not available (%v), notifications not published", err)
		} else {
			defer natsSink.Close()
			sinks = append(sinks, natsSink)
			log.Printf("maintcore: nats connected (%s)", cfg.Notify.NATSURL)
		}
	}

	// Messaging client
	var msgClient *messaging.Client
	if cfg.Messaging.Backend != "none" && cfg.Messaging.Backend != "" {
		msgClient = messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(); err != nil {
			log.Printf("maintcore: messaging connect failed (%v)", err)
		} else {
			log.Printf("maintcore: messaging connected (%s)", msgClient.Backend())
		}
		defer msgClient.Close()
	}

	// Engine
	engCfg := engine.Config{
		AppConfig: cfg,
		Recorder:  db,
		Processed: processed,
		Sinks:     sinks,
		DebugFunc: debugFn,
		Clock:     clock,
	}
	if msgClient != nil {
		engCfg.MsgClient = msgClient
	}
	eng, err := engine.New(engCfg)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	eng.Start()
	defer eng.Stop()

	if msgClient != nil {
		// Telemetry consumer (inbound)
		consumer := messaging.NewConsumer(msgClient, cfg.Messaging.TelemetryTopic,
			eng.IngestHandler(10*time.Second), messaging.StationFilter(cfg.Messaging.StationID))
		if err := consumer.Start(); err != nil {
			log.Printf("maintcore: telemetry subscribe failed: %v", err)
		} else {
			log.Printf("maintcore: telemetry consumer listening on %s", cfg.Messaging.TelemetryTopic)
		}

		// Outbox drainer (outbound records)
		drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
		drainer.Start()
		defer drainer.Stop()
	}

	// Web server
	handler, stopWeb := www.NewRouter(eng, www.Options{
		Admins:        db,
		Notifications: wsHub,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("maintcore: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("maintcore: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("maintcore: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("maintcore: stopped")
}
