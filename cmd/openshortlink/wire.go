//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"openshortlink/internal/biz"
	"openshortlink/internal/conf"
	"openshortlink/internal/data"
	"openshortlink/internal/server"
	"openshortlink/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Analytics, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		server.ProviderSet,
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		wire.Bind(new(service.AnalyticsQuerier), new(*biz.AnalyticsUsecase)),
		wire.Bind(new(service.HealthChecker), new(*data.Data)),
		newApp,
	))
}
