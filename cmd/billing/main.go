package main

import (
	"context"
	"log"

	"github.com/pahanaedu/bookstore-billing/internal/auth"
	"github.com/pahanaedu/bookstore-billing/internal/config"
	"github.com/pahanaedu/bookstore-billing/internal/handler"
	"github.com/pahanaedu/bookstore-billing/internal/ledger"
	"github.com/pahanaedu/bookstore-billing/internal/logger"
	"github.com/pahanaedu/bookstore-billing/internal/mailer"
	"github.com/pahanaedu/bookstore-billing/internal/policy"
	"github.com/pahanaedu/bookstore-billing/internal/service"
	"github.com/pahanaedu/bookstore-billing/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.GetConfig()

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}

	policies, err := policy.NewPolicyStore(context.Background(), store)
	if err != nil {
		return err
	}

	ledger := ledger.NewLedger(store, policies)

	var receiptMailer mailer.Mailer
	if cfg.Mailer.GatewayAddr != "" {
		receiptMailer = mailer.NewMailer(cfg.Mailer)
	}

	auth := auth.NewAuth(cfg.Auth, store)
	service := service.NewService(store, policies, ledger, receiptMailer)

	return handler.Serve(cfg.Handler, auth, service, policies, zaplog)
}
