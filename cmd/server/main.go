package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ButyrinIA/socials/internal/config"
	"github.com/ButyrinIA/socials/internal/logger"
	"github.com/ButyrinIA/socials/internal/permit"
	"github.com/ButyrinIA/socials/internal/realtime"
	"github.com/ButyrinIA/socials/internal/server"
	"github.com/ButyrinIA/socials/internal/storage"
	"github.com/ButyrinIA/socials/internal/storage/memory"
	"github.com/ButyrinIA/socials/internal/storage/postgres"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "memory", "тип хранилища: memory или postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Не удалось загрузить конфигурацию: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Не удалось создать логгер: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, *storageType, log)
	if err != nil {
		log.Error("Сервер остановлен с ошибкой", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run держит все ресурсы процесса; они освобождаются до выхода из main
func run(cfg *config.Config, storageType string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Storage
	switch storageType {
	case "postgres":
		log.Info("Инициализация хранилища PostgreSQL")
		pg, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("не удалось инициализировать PostgreSQL: %w", err)
		}
		store = pg
	case "memory":
		log.Info("Инициализация хранилища Memory")
		store = memory.New()
	default:
		return fmt.Errorf("неизвестный тип хранилища: %s", storageType)
	}
	defer store.Close()

	gate := permit.NewGate(
		permit.NewClient(cfg.Permit.BaseURL, cfg.Permit.Timeout),
		cfg.Permit.Resource,
		log.Named("permit"),
	)

	srv := server.New(cfg, store, gate, realtime.NewHub(), log.Named("server"))
	log.Info("Запуск сервера", zap.String("port", cfg.Server.Port))
	return srv.Run(ctx)
}
