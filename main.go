package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"lotto/database"
	"lotto/jobs"
	"lotto/notify"
	"lotto/routes"
	"lotto/services"
	"lotto/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	database.Connect()
	st := store.NewGormStore(database.DB)

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
	}
	events := notify.NewPublisher(rdb, os.Getenv("NOTIFY_CHANNEL"), logger)

	deps := routes.Deps{
		Store:      st,
		Accounts:   services.NewAccountService(st, logger),
		Bets:       services.NewBetService(st, logger, events),
		Credits:    services.NewCreditService(st, logger, events),
		Draws:      services.NewDrawService(st, logger, events),
		Settlement: services.NewSettlementService(st, logger, events),
	}

	host := os.Getenv("HOST")
	port := os.Getenv("PORT")
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "3000"
	}

	app := fiber.New()
	routes.Setup(app, deps)
	scheduler := jobs.StartDrawScheduler(deps.Draws, logger)

	addr := fmt.Sprintf("%s:%s", host, port)
	log.Println("Server running at", addr)

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Panicf("Failed to start server: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Gracefully shutting down...")
	scheduler.Stop()
	if err := app.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited cleanly")
}
