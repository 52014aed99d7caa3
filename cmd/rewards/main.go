package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"caremarket-rewards/pkg/config"
	"caremarket-rewards/pkg/db"
	"caremarket-rewards/pkg/health"
	"caremarket-rewards/pkg/logger"
	"caremarket-rewards/pkg/redis"
	"caremarket-rewards/pkg/server"
	"caremarket-rewards/services/catalog"
	"caremarket-rewards/services/rewardconfig"
	"caremarket-rewards/services/rewards"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		health.Module,
		server.Module,
		fx.Provide(
			provideSnowflakeNode,
			provideCategoryResolver,
		),
		catalog.Module,
		rewardconfig.Module,
		rewards.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func provideCategoryResolver(svc *catalog.Service) rewardconfig.CategoryResolver {
	return svc
}
