// Package config gathers per-layer configuration from flags and
// environment variables. Environment wins over flags so deployments can
// override a baked-in command line.
package config

import (
	"flag"
	"os"

	authConfig "github.com/pahanaedu/bookstore-billing/internal/auth/config"
	handlerConfig "github.com/pahanaedu/bookstore-billing/internal/handler/config"
	loggerConfig "github.com/pahanaedu/bookstore-billing/internal/logger/config"
	mailerConfig "github.com/pahanaedu/bookstore-billing/internal/mailer/config"
	storeConfig "github.com/pahanaedu/bookstore-billing/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
	Auth    authConfig.Config
	Mailer  mailerConfig.Config
}

func GetConfig() Config {
	var cfg Config

	flag.StringVar(&cfg.Handler.ServerAddr, "a", ":8080", "address to serve on")
	flag.StringVar(&cfg.Store.DatabaseURI, "d", "", "postgres connection string")
	flag.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	flag.StringVar(&cfg.Auth.TokenSecret, "s", "", "token signing secret")
	flag.StringVar(&cfg.Mailer.GatewayAddr, "m", "", "mail gateway address")
	flag.StringVar(&cfg.Mailer.FromAddress, "f", "billing@pahanaedu.lk", "receipt sender address")
	flag.Parse()

	for env, target := range map[string]*string{
		"RUN_ADDRESS":       &cfg.Handler.ServerAddr,
		"DATABASE_URI":      &cfg.Store.DatabaseURI,
		"LOG_LEVEL":         &cfg.Logger.LogLevel,
		"TOKEN_SECRET":      &cfg.Auth.TokenSecret,
		"MAIL_GATEWAY_ADDR": &cfg.Mailer.GatewayAddr,
		"MAIL_FROM":         &cfg.Mailer.FromAddress,
	} {
		if value := os.Getenv(env); value != "" {
			*target = value
		}
	}

	return cfg
}
