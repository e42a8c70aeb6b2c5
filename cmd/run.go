package cmd

import (
	"context"
	"fmt"

	"tombola/config"
	"tombola/database"
	"tombola/events"
	"tombola/repository"
	"tombola/server"
	"tombola/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the lottery server
func Run(ctx context.Context) error {
	cfg := config.Get()

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	// Bet store: Postgres when configured, in-memory otherwise
	var store service.BetStore
	if cfg.DatabaseURL != "" {
		log.Info("connecting to database")
		db, err := database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		store = repository.NewPostgresBetStore(db)
	} else {
		log.Warn("no DATABASE_URL configured, bets are stored in memory only")
		store = repository.NewMemoryBetStore()
	}

	// Lottery events go through the in-process bus; when NATS is configured
	// every event is also forwarded to it.
	bus := events.NewBus()
	bus.Subscribe(events.EventTypeDrawCompleted, func(ctx context.Context, event events.Event) {
		draw := event.(events.DrawCompletedEvent)
		log.WithFields(log.Fields{
			"agencies":        draw.Agencies,
			"releasedQueries": draw.ReleasedQueries,
		}).Info("lottery draw completed")
	})
	if cfg.NATSURL != "" {
		log.WithField("servers", cfg.NATSURL).Info("connecting to NATS")
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		for _, eventType := range []events.EventType{
			events.EventTypeBetsRecorded,
			events.EventTypeAgencyFinished,
			events.EventTypeDrawCompleted,
		} {
			bus.Subscribe(eventType, natsPublisher.Emit)
		}
	}

	lottery := service.NewLotteryService(store, service.NumberPredicate(cfg.WinningNumber), bus)

	srv := server.New(server.Config{
		Port:            cfg.ServerPort,
		ListenBacklog:   cfg.ListenBacklog,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, lottery)

	log.WithFields(log.Fields{
		"port":    cfg.ServerPort,
		"backlog": cfg.ListenBacklog,
	}).Info("starting lottery server")
	return srv.Run(ctx)
}
