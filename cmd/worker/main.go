package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"attendance/internal/attendance"
	"attendance/internal/config"
	"attendance/internal/queue"
	"attendance/internal/store"
)

// Worker consumes session events and maintains per-day open/close tallies in
// Redis. Stale sessions the API leaves open show up as days where opens
// outnumber closes; the worker reports, it never mutates records.
func main() {
	cfg := config.Load()
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("queue consume init failed")
	}

	logger.Info().Msg("worker started, waiting for session events")
	for msg := range messages {
		if msg.Type != attendance.Opened && msg.Type != attendance.Closed {
			continue
		}

		evt, err := queue.DecodeSessionEvent(msg.Body)
		if err != nil {
			logger.Warn().Err(err).Str("type", msg.Type).Msg("undecodable session event")
			continue
		}

		day := evt.At.UTC().Format("2006-01-02")
		field := "opened"
		if msg.Type == attendance.Closed {
			field = "closed"
		}

		if err := redisClient.Client.HIncrBy(ctx, "attendance:tally:"+day, field, 1).Err(); err != nil {
			logger.Warn().Err(err).Str("day", day).Msg("tally update failed")
			continue
		}

		logger.Debug().
			Str("day", day).
			Str("event", msg.Type).
			Int64("record_id", evt.RecordID).
			Str("user_uuid", evt.UserUUID).
			Msg("tallied session event")
	}

	logger.Info().Msg("worker stopped")
}
