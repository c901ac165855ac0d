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

	"github.com/cyberorg/sparagliding-meshmap/broker"
	"github.com/cyberorg/sparagliding-meshmap/config"
	"github.com/cyberorg/sparagliding-meshmap/engine"
	"github.com/cyberorg/sparagliding-meshmap/messaging"
	"github.com/cyberorg/sparagliding-meshmap/nodestate"
	"github.com/cyberorg/sparagliding-meshmap/store"
	"github.com/cyberorg/sparagliding-meshmap/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "meshmap.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("meshmap", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("meshmap: database open (%s)", cfg.Database.Driver)

	// Redis mirror of connectivity state, optional
	var redisStore *nodestate.RedisStore
	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("meshmap: redis not available (%v), running without cache", err)
			redisClient.Close()
		} else {
			log.Printf("meshmap: redis connected (%s)", cfg.Redis.Address)
			redisStore = nodestate.NewRedisStore(redisClient)
			defer redisClient.Close()
		}
		cancel()
	}

	nodeStateMgr := nodestate.NewManager(db, redisStore)
	if redisStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := nodeStateMgr.SyncRedisFromSQL(ctx); err != nil {
			log.Printf("meshmap: redis sync from SQL: %v", err)
		}
		cancel()
	}

	// Embedded broker for gateways that publish here directly
	if cfg.Broker.Enabled {
		b, err := broker.New(cfg.Broker)
		if err != nil {
			log.Fatalf("embedded broker: %v", err)
		}
		b.Start()
		defer b.Close()
		log.Printf("meshmap: embedded broker listening on %s", cfg.Broker.Address)
	}

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("meshmap: messaging connect failed (%v)", err)
	}
	defer msgClient.Close()

	// Engine
	eng, err := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		NodeState: nodeStateMgr,
		Transport: msgClient,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	if err := eng.Start(); err != nil {
		log.Fatalf("engine start: %v", err)
	}
	defer eng.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("meshmap: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("meshmap: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("meshmap: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("meshmap: stopped")
}
