package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"social_media_agent/auth"
	"social_media_agent/config"
	"social_media_agent/generator"
	"social_media_agent/server"
	"social_media_agent/store"
)

const openAIBaseURL = "https://api.openai.com/v1"

var verbose bool

func main() {
	configPath := flag.String("config", "config/config.json", "path to config.json")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	mock := flag.Bool("mock", false, "use the offline mock model instead of a remote provider")

	task := flag.String("task", "", "captions | reel | hashtags | plan | score | image_caption")
	topic := flag.String("topic", "", "topic / brief (topic hint for image_caption)")
	caption := flag.String("caption", "", "caption text to score")
	imagePath := flag.String("image", "", "path to image for image_caption")
	count := flag.Int("count", generator.DefaultHashtagCount, "number of hashtags")
	tz := flag.String("tz", generator.DefaultTimezone, "timezone label for the weekly plan")
	creativity := flag.Float64("creativity", generator.DefaultCreativity, "sampling temperature for captions and reel scripts (0-1)")
	flag.BoolVar(&verbose, "v", false, "enable debug logs")
	flag.Parse()

	logger := newLogger(verbose)
	slog.SetDefault(logger)

	if *mock {
		// mock mode needs no credentials
		os.Setenv("SMA_LLM_PROVIDER", "mock")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		fail(err)
	}
	invoker, err := generator.NewInvoker(llm, cfg.LLM.Models,
		generator.WithAttemptTimeout(cfg.LLM.AttemptTimeout),
		generator.WithLogger(logger))
	if err != nil {
		fail(err)
	}
	agent, err := generator.NewAgent(invoker)
	if err != nil {
		fail(err)
	}

	// Web server mode
	if *serve {
		if *addr != "" {
			cfg.ServerAddr = *addr
		}
		if err := runServer(cfg, agent, logger); err != nil {
			fail(err)
		}
		return
	}

	if *task == "" {
		fail(errors.New("--task is required unless --serve is set"))
	}
	kind, err := generator.ParseTaskKind(*task)
	if err != nil {
		fail(err)
	}
	req := generator.Request{
		Kind:         kind,
		Topic:        *topic,
		Creativity:   *creativity,
		HashtagCount: *count,
		Timezone:     *tz,
		Caption:      *caption,
	}
	if kind == generator.TaskImageCaption {
		if *imagePath == "" {
			fail(errors.New("--image is required for image_caption"))
		}
		if req.Image, err = os.ReadFile(*imagePath); err != nil {
			fail(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("generating", "task", kind, "topic", req.Topic, "models", invoker.Models())
	res, err := agent.Generate(ctx, req)
	if err != nil {
		fail(err)
	}
	logger.Info("generation done", "task", kind, "model", res.Model, "attempts", len(res.Attempts))
	fmt.Println(res.Text)
}

func runServer(cfg config.Config, agent *generator.Agent, logger *slog.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (or SMA_AUTH_JWT_SECRET) is required for --serve")
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	history, closeHistory, err := buildHistory(cfg)
	if err != nil {
		return err
	}
	defer closeHistory()

	srv, err := server.New(server.Deps{
		Agent:    agent,
		Accounts: store.NewAccounts(cfg.UsersPath(), 0),
		History:  history,
		Tokens:   tokens,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting web server", "addr", cfg.ServerAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号或启动失败
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func buildLLM(cfg config.LLMConfig) (generator.LLMClient, error) {
	switch cfg.Provider {
	case "mock":
		return generator.MockLLM{}, nil
	case "groq":
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider: cfg.Provider,
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
		})
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = openAIBaseURL
		}
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider: cfg.Provider,
			APIKey:   cfg.APIKey,
			BaseURL:  baseURL,
		})
	default:
		return nil, fmt.Errorf("%w: llm provider %s not supported", generator.ErrConfiguration, cfg.Provider)
	}
}

// buildHistory prefers Redis when configured and falls back to the JSON document.
func buildHistory(cfg config.Config) (store.History, func(), error) {
	if cfg.Redis.Addr == "" {
		return store.NewFileHistory(cfg.HistoryPath()), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	return store.NewRedisHistory(rdb), func() { _ = rdb.Close() }, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level, AddSource: verbose}))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
