package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docuchat/internal/ai"
	"docuchat/internal/app"
	"docuchat/internal/cache"
	"docuchat/internal/config"
	"docuchat/internal/model"
	"docuchat/internal/pkg/textextract"
	mysqlClient "docuchat/internal/platform/mysql"
	rabbitmqClient "docuchat/internal/platform/rabbitmq"
	redisClient "docuchat/internal/platform/redis"
	"docuchat/internal/repository"
	"docuchat/internal/storage"
	"docuchat/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Blobs  storage.Storage

	AuthService     *app.AuthService
	DocumentService *app.DocumentService
	ChatService     *app.ChatService
	QuotaService    *app.QuotaService
	AccountService  *app.AccountService

	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Chunk{},
		&model.ChatSession{},
		&model.Message{},
		&model.QuotaRecord{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewMinIO(storage.MinIOConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	aiClient := ai.NewClient(ai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	})

	userRepo := repository.NewUserRepository(mysqlDB)
	documentRepo := repository.NewDocumentRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)
	sessionRepo := repository.NewSessionRepository(mysqlDB)
	messageRepo := repository.NewMessageRepository(mysqlDB)
	quotaRepo := repository.NewQuotaRepository(mysqlDB)

	sessionCache := cache.NewSessionCache(
		redisCli,
		time.Duration(cfg.Redis.SessionTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.SessionDirtyTTLSeconds)*time.Second,
	)

	ingestPublisher := rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)

	authService := app.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	documentService := app.NewDocumentService(
		documentRepo,
		chunkRepo,
		blobs,
		ingestPublisher,
		time.Duration(cfg.MinIO.PresignExpireMinute)*time.Minute,
	)
	quotaService := app.NewQuotaService(quotaRepo, cfg.RAG.DailyQueryLimit)
	chatService := app.NewChatService(
		sessionRepo,
		messageRepo,
		documentRepo,
		chunkRepo,
		quotaService,
		aiClient,
		aiClient,
		sessionCache,
		cfg.RAG.TopK,
	)

	accountService := app.NewAccountService(
		userRepo,
		documentRepo,
		chunkRepo,
		sessionRepo,
		messageRepo,
		quotaRepo,
		quotaService,
		blobs,
	)

	ingestService := app.NewIngestService(
		documentRepo,
		chunkRepo,
		blobs,
		textextract.Extractor{},
		aiClient,
		cfg.RAG.ChunkMaxTokens,
		cfg.RAG.EmbeddingBatchSize,
	)
	ingestWorker := worker.NewIngestWorker(mqConn, ingestService, cfg.RabbitMQ.IngestQueue)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:          cfg,
		MySQL:           mysqlDB,
		Redis:           redisCli,
		MQConn:          mqConn,
		Blobs:           blobs,
		AuthService:     authService,
		DocumentService: documentService,
		ChatService:     chatService,
		QuotaService:    quotaService,
		AccountService:  accountService,
		IngestWorker:    ingestWorker,
		StartedAt:       time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
