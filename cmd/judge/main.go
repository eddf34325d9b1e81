package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/broadcast"
	"github.com/programme-lv/judge/internal/environment"
	"github.com/programme-lv/judge/internal/httpapi"
	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/natspub"
	"github.com/programme-lv/judge/internal/queue"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/scoreboard"
	"github.com/programme-lv/judge/internal/store"
)

// how often ended contests are swept and finalized
const finalizeInterval = 15 * time.Second

func main() {
	cmd := &cli.Command{
		Name:  "judge",
		Usage: "contest judging service with live standings",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the judging and standings server",
				Action: serve,
			},
			{
				Name:   "health",
				Usage:  "check docker and redis connectivity",
				Action: health,
			},
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, _ *cli.Command) error {
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug}))
	slog.SetDefault(log)

	cfg := environment.ReadEnvConfig()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	db := store.NewRedis(rdb)

	languages := judge.DefaultRegistry()
	if cfg.LanguagesPath != "" {
		var err error
		if languages, err = judge.LoadRegistry(cfg.LanguagesPath); err != nil {
			return fmt.Errorf("failed to load language registry: %w", err)
		}
	}

	bcast := broadcast.NewBroadcaster(log)
	events := broadcast.MultiSink{bcast}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to nats at %s: %w", cfg.NatsURL, err)
		}
		defer nc.Close()
		events = append(events, natspub.NewPublisher(nc, log))
		log.Info("standings events mirrored to nats", "url", cfg.NatsURL)
	}

	board := scoreboard.NewEngine(db, db, log)
	runner := sandbox.NewDockerRunner(log)
	comparator := judge.NewComparator(runner, log)
	pipeline := judge.NewPipeline(comparator, db, languages, log)
	svc := judge.NewService(runner, pipeline, db, db, db, board, events, languages, cfg.SubmissionsDir, log)
	srv := httpapi.NewServer(svc, board, bcast, events, log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return finalizeLoop(ctx, board, events, log)
	})
	if cfg.SqsQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AwsRegion))
		if err != nil {
			return fmt.Errorf("failed to load aws config: %w", err)
		}
		worker := queue.NewWorker(sqs.NewFromConfig(awsCfg), cfg.SqsQueueURL, svc, log)
		g.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

// finalizeLoop periodically finalizes ended contests and broadcasts the
// FINALIZED event so open streams learn the board froze.
func finalizeLoop(ctx context.Context, board *scoreboard.Engine, events broadcast.Sink, log *slog.Logger) error {
	ticker := time.NewTicker(finalizeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, contestID := range board.FinalizeEndedContests(ctx) {
				snap := board.Snapshot(ctx, contestID)
				events.Publish(contestID, api.StandingsEvent{
					Type:      api.FinalizedEvent,
					ContestID: contestID,
					Version:   snap.Version,
				})
				log.Info("contest finalized by sweep", "contest", contestID)
			}
		}
	}
}

func health(ctx context.Context, _ *cli.Command) error {
	cfg := environment.ReadEnvConfig()
	okCol := color.New(color.FgHiGreen)
	errCol := color.New(color.FgHiRed)
	failed := false

	if out, err := exec.CommandContext(ctx, "docker", "version", "--format", "{{.Server.Version}}").Output(); err != nil {
		errCol.Println("docker: unreachable:", err)
		failed = true
	} else {
		okCol.Println("docker:", strings.TrimSpace(string(out)))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		errCol.Println("redis: unreachable:", err)
		failed = true
	} else {
		okCol.Println("redis:", cfg.RedisAddr)
	}

	if failed {
		return errors.New("one or more health checks failed")
	}
	return nil
}
