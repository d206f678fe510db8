package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"headless-pro/apps/content-api/consumer"
	"headless-pro/apps/content-api/converter"
	"headless-pro/apps/content-api/dao"
	"headless-pro/apps/content-api/handler"
	"headless-pro/apps/content-api/policy"
	"headless-pro/apps/content-api/schema"
	"headless-pro/apps/content-api/service"
	"headless-pro/pkg/auth"
	"headless-pro/pkg/kafka"
	"headless-pro/pkg/lifecycle"
	"headless-pro/pkg/logger"
	"headless-pro/pkg/middleware"
	"headless-pro/pkg/server"
	"headless-pro/pkg/snowflake"
)

var serveSeedFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and gRPC health service)",
	Long: `Serve starts the headless content API.

With storage.backend=memory, --seed loads content from a YAML file at startup.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSeedFile, "seed", "", "YAML file with content to load at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := server.NewApplication(cfg)
	if err != nil {
		return err
	}
	log := app.GetLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// 重复注册是配置错误，直接退出
	registry, err := schema.NewDefaultRegistry()
	if err != nil {
		app.Close()
		return err
	}

	store, err := buildStore(app)
	if err != nil {
		app.Close()
		return err
	}
	searcher, err := buildSearcher(ctx, app)
	if err != nil {
		app.Close()
		return err
	}

	if serveSeedFile != "" {
		if err := seedFromFile(ctx, serveSeedFile, registry, store, searcher, log); err != nil {
			app.Close()
			return err
		}
	}

	var publisher kafka.Publisher
	if producer := app.GetKafkaProducer(); producer != nil {
		publisher = producer
	}

	queryOpts := []service.Option{}
	if searcher != nil {
		queryOpts = append(queryOpts, service.WithSearcher(searcher))
	}
	if publisher != nil {
		queryOpts = append(queryOpts, service.WithViewTracker(service.NewEventViewTracker(publisher, cfg.Kafka.ViewTopic)))
	}
	query := service.NewQueryService(store, registry, cfg.Headless.StoreTimeout, log, queryOpts...)

	mailer, err := buildMailer(cfg, publisher)
	if err != nil {
		app.Close()
		return err
	}
	var archive dao.ContactArchive
	if mongoDB := app.GetMongoDB(); mongoDB != nil {
		archive = dao.NewContactDAO(mongoDB)
	}
	ids, err := snowflake.NewSnowflake(cfg.App.MachineID)
	if err != nil {
		app.Close()
		return err
	}
	nonces := auth.NewNonceManager(auth.NonceConfig{Secret: cfg.Headless.NonceSecret, ExpireTime: cfg.Headless.NonceTTL})
	contact := service.NewContactService(cfg.Site, nonces, mailer, archive, ids, log)

	var handlerOpts []handler.Option
	if redisClient := app.GetRedisClient(); redisClient != nil {
		handlerOpts = append(handlerOpts,
			handler.WithResponseCache(middleware.ResponseCache(redisClient, cfg.Headless.CacheTTL, log)),
			handler.WithContactLimiter(middleware.RateLimit(redisClient, cfg.Headless.ContactRateLimit, cfg.Headless.ContactRateWindow, log)),
		)
	}
	httpHandler := handler.NewHTTPHandler(cfg.Headless.APIRoot, handler.Services{
		Query:     query,
		Decorator: service.NewFieldDecorator(registry),
		Site:      service.NewSiteService(cfg, registry),
		Contact:   contact,
		Registry:  registry,
	}, converter.NewConverter(cfg.Site.URL), log, handlerOpts...)

	access := policy.NewAccessPolicy(
		policy.NewCORSPolicy(cfg.AllowedOrigins()),
		policy.NewRedirectPolicy(cfg.Headless.FrontendURL, cfg.Headless.APIRoot),
	)

	app.EnableHTTP()
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		engine.Use(access.Handlers()...)
		httpHandler.RegisterRoutes(engine)
	})
	if cfg.Server.GRPC.Enabled {
		app.EnableGRPC()
	}

	if publisher != nil {
		if err := addConsumerHooks(app, store, archive, log); err != nil {
			app.Close()
			return err
		}
	}

	log.Info(ctx, "Content API configured",
		logger.F("storage", cfg.Storage.Backend),
		logger.F("search", cfg.Storage.Search),
		logger.F("mail", cfg.Mail.Transport),
		logger.F("pid", os.Getpid()))
	return app.Run()
}

// addConsumerHooks 浏览事件和邮件发件箱消费者随应用启停
func addConsumerHooks(app *server.Application, store dao.ContentStore, archive dao.ContactArchive, log logger.Logger) error {
	cfg := app.GetConfig()

	views := consumer.NewViewConsumer(store, log)
	app.AddHook(lifecycle.Hook{
		Name:     "view-consumer",
		Priority: lifecycle.PriorityWorker,
		OnStart: func(ctx context.Context) error {
			return views.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-views", cfg.Kafka.ViewTopic)
		},
		OnStop: func(context.Context) error {
			return views.Stop()
		},
	})

	if cfg.Mail.Transport != "kafka" {
		return nil
	}
	smtpMailer, err := service.NewSMTPMailer(cfg.Mail)
	if err != nil {
		return err
	}
	mails := consumer.NewMailConsumer(smtpMailer, archive, log)
	app.AddHook(lifecycle.Hook{
		Name:     "mail-consumer",
		Priority: lifecycle.PriorityWorker,
		OnStart: func(ctx context.Context) error {
			if err := mails.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-mail", cfg.Kafka.MailTopic); err != nil {
				return fmt.Errorf("start mail consumer: %w", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return mails.Stop()
		},
	})
	return nil
}
