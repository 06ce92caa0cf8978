// Package main is the entry point of the storage server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"muichiro-nexus/internal/config"
	"muichiro-nexus/internal/handler"
	"muichiro-nexus/internal/middleware"
	"muichiro-nexus/internal/pipeline"
	"muichiro-nexus/internal/repository"
	"muichiro-nexus/internal/service"
	"muichiro-nexus/pkg/database"
	"muichiro-nexus/pkg/embedding"
	"muichiro-nexus/pkg/es"
	"muichiro-nexus/pkg/extract"
	"muichiro-nexus/pkg/kafka"
	"muichiro-nexus/pkg/llm"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/storage"
	"muichiro-nexus/pkg/tika"
	"muichiro-nexus/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	database.InitMySQL(cfg.Database.MySQL)
	database.InitRedis(cfg.Database.Redis)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("failed to initialize object storage", err)
	}
	esClient, err := es.NewClient(ctx, cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatal("failed to initialize elasticsearch", err)
	}

	verifier, err := token.NewVerifier(cfg.Identity)
	if err != nil {
		log.Fatal("failed to initialize token verifier", err)
	}
	embedder := embedding.NewLazy(embedding.ProbedFactory(func() embedding.Client {
		return embedding.NewClient(cfg.Embedding)
	}, cfg.Embedding.Dimensions))
	llmClient := llm.NewClient(cfg.LLM)
	extractor := extract.NewExtractor(tika.NewClient(cfg.Tika))

	userRepo := repository.NewUserRepository(database.DB)
	fileRepo := repository.NewFileRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)

	userService := service.NewUserService(userRepo, database.RDB, time.Duration(cfg.Identity.UserCacheTTLMin)*time.Minute)
	analysisService := service.NewAnalysisService(fileRepo, store, extractor, llmClient, cfg.LLM, cfg.AI.MaxTextChars)

	var analyzer pipeline.Analyzer
	if cfg.AI.AnalyzeOnUpload {
		analyzer = analysisService
	}
	processor := pipeline.NewProcessor(store, extractor, embedder, chunkRepo, esClient, analyzer,
		pipeline.ChunkOptions{ChunkSize: cfg.Chunker.ChunkSize, Overlap: cfg.Chunker.Overlap},
		cfg.Embedding.Model)

	var dispatcher service.TaskDispatcher
	var inProcess *pipeline.AsyncDispatcher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		dispatcher = producer

		consumer := kafka.NewConsumer(cfg.Kafka, processor, kafka.NewRedisAttemptCounter(database.RDB))
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Errorf("[Kafka] consumer stopped: %v", err)
			}
		}()
	} else {
		log.Info("kafka disabled, post-processing runs in-process")
		inProcess = pipeline.NewAsyncDispatcher(processor)
		dispatcher = inProcess
	}

	uploadService := service.NewUploadService(fileRepo, store, dispatcher)
	fileService := service.NewFileService(fileRepo, chunkRepo, esClient, store,
		time.Duration(cfg.Storage.PresignExpiryMinutes)*time.Minute)
	searchService := service.NewSearchService(fileRepo)
	semanticService := service.NewSemanticSearchService(embedder, esClient)

	fileHandler := handler.NewFileHandler(uploadService, fileService, cfg.Server.MaxUploadMB)
	analyzeHandler := handler.NewAnalyzeHandler(analysisService)
	searchHandler := handler.NewSearchHandler(searchService, semanticService)
	userHandler := handler.NewUserHandler(userService)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", handler.Healthz)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(verifier, userService))
	{
		users := apiV1.Group("/users")
		{
			users.POST("/sync", userHandler.Sync)
			users.GET("/me", userHandler.Me)
		}

		files := apiV1.Group("/files")
		{
			files.POST("", fileHandler.Upload)
			files.GET("", fileHandler.List)
			files.GET("/download", fileHandler.Download)
			files.DELETE("/:id", fileHandler.Delete)
			files.POST("/:id/analyze", analyzeHandler.Analyze)
			files.GET("/:id/analyze/stream", analyzeHandler.Stream)
		}

		apiV1.POST("/search", searchHandler.Search)
		apiV1.POST("/semantic-search", searchHandler.Semantic)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
	if inProcess != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelDrain()
		if err := inProcess.Drain(drainCtx); err != nil {
			log.Warnf("file processing still running at exit: %v", err)
		}
	}
	log.Info("server exited")
}
