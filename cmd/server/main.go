package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"order_admin/internal/config"
	"order_admin/internal/middleware"
	"order_admin/internal/model"
	"order_admin/internal/order"
	"order_admin/internal/queue"
	"order_admin/internal/router"
	"order_admin/internal/stock"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Status{},
		&model.Order{},
		&model.OrderDetail{},
		&model.OrderActivity{},
		&model.Notification{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	if err := seedStatuses(db); err != nil {
		log.Fatalf("seed statuses: %v", err)
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	ledger := stock.NewRedisLedger(rdb)
	outbox := queue.NewOutbox(rdb, cfg.OrderEventStream)

	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := queue.NewRelay(rdb, producer, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)
	go relay.Run(ctx)
	go consumer.Run(ctx)

	svc := order.NewService(db, ledger, outbox, cfg.DefaultActingUser)

	r := gin.Default()
	r.Use(middleware.RequestID())
	router.Setup(r, router.Deps{
		DB:                db,
		Orders:            svc,
		Stock:             ledger,
		RateLimit:         middleware.RedisRateLimit(rdb, cfg.CreateRateLimit, cfg.CreateRateWindow),
		PreloadAdminToken: cfg.PreloadAdminToken,
		StockCacheTTL:     cfg.StockCacheTTL,
	})

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}

// seedStatuses inserts the default catalog rows, leaving any existing
// configuration untouched.
func seedStatuses(db *gorm.DB) error {
	for _, s := range model.DefaultStatuses() {
		var existing model.Status
		err := db.First(&existing, s.ID).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&s).Error; err != nil {
			return err
		}
	}
	return nil
}
