//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RiskPulse/pkg/config"
	"RiskPulse/pkg/server"
)

var engineSet = wire.NewSet(
	// Infrastructure clients
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideRedisCache,
	ProvideClickHouseClient,

	// Repositories
	ProvideCatalog,
	ProvideAssessmentCache,
	ProvideStore,
	ProvideArchive,
	ProvideFinnhubStream,
	ProvidePriceSource,

	// Use cases
	ProvideWriter,
	ProvideEngine,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		engineSet,
		ProvideAlertSink,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,
		ProvideTickCollector,
		ProvideRiskHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeCLI wires the engine for one-shot commands.
func InitializeCLI(cfg *config.Config) (*CLI, func(), error) {
	wire.Build(engineSet, ProvideCLI)
	return nil, nil, nil
}
