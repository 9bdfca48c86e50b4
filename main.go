package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"reachflow/classifier"
	"reachflow/config"
	"reachflow/engine"
	"reachflow/mailbox"
	"reachflow/middleware"
	"reachflow/routes"
	"reachflow/store"
	"reachflow/worker"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadConfig(); err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if config.AppConfig.Environment == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if dsn := config.AppConfig.SentryDSN; dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			log.WithError(err).Warn("Failed to initialize Sentry")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := config.ConnectDB(); err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	st := store.New(config.DB)

	// Per-prospect send locks. Redis makes them safe across instances;
	// the in-process fallback is fine for a single node.
	var locker engine.ProspectLocker
	if config.AppConfig.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Address,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
		locker = store.NewRedisLocker(redisClient)
		log.Info("✅ Using Redis prospect locks")
	} else {
		locker = store.NewLocalLocker()
		log.Warn("Redis not configured, using in-process prospect locks")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var replyClassifier engine.Classifier
	if key := config.AppConfig.GeminiAPIKey; key != "" {
		gemini, err := classifier.NewGeminiClassifier(ctx, key, config.AppConfig.GeminiModel, log.WithField("component", "classifier"))
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize Gemini classifier")
		}
		replyClassifier = gemini
	} else {
		replyClassifier = classifier.NewKeywordClassifier()
		log.Warn("GEMINI_API_KEY not set, using keyword classifier")
	}

	mailer := mailbox.NewSMTPMailer(config.AppConfig.SMTP, log.WithField("component", "mailer"))
	triggers := engine.NewTriggerEvaluator(st, log.WithField("component", "triggers"))

	executor := engine.NewExecutor(engine.ExecutorDeps{
		Campaigns:   st,
		Prospects:   st,
		Sequences:   st,
		Progress:    st,
		Events:      st,
		Threads:     st,
		Users:       st,
		Mailer:      mailer,
		Triggers:    triggers,
		Locker:      locker,
		Logger:      log.WithField("component", "executor"),
		BaseURL:     config.AppConfig.BaseURL,
		SendTimeout: config.AppConfig.ExternalTimeout,
	})

	tracker := engine.NewStatusTracker(st, st, st, log.WithField("component", "status_tracker"))
	replies := engine.NewReplyProcessor(st, st, st, replyClassifier, log.WithField("component", "replies"), config.AppConfig.ExternalTimeout)

	sequenceWorker := worker.NewSequenceWorker(executor, tracker, config.AppConfig.SequenceInterval, log.WithField("component", "sequence_worker"))
	go sequenceWorker.Start(ctx)

	if config.AppConfig.IMAP.Host != "" {
		poller := mailbox.NewIMAPPoller(config.AppConfig.IMAP, config.AppConfig.SMTP.Username, log.WithField("component", "imap"))
		replyWorker := worker.NewReplyWorker(poller, replies, config.AppConfig.ReplyInterval, log.WithField("component", "reply_worker"))
		go replyWorker.Start(ctx)
	} else {
		log.Warn("IMAP_HOST not set, reply polling disabled")
	}

	app := fiber.New(fiber.Config{
		AppName: "reachflow",
	})
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, config.DB, st, tracker, replies, log)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	log.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
