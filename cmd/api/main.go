package main

import (
	"context"
	"course-checkout/internal/client"
	"course-checkout/internal/config"
	"course-checkout/internal/identity"
	"course-checkout/internal/logging"
	"course-checkout/internal/metrics"
	"course-checkout/internal/model"
	"course-checkout/internal/repository"
	"course-checkout/internal/server"
	"course-checkout/internal/service"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

func main() {
	// load .env into os.Environ
	envErr := godotenv.Load()

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		log.WithError(err).Fatal("Failed to parse config")
	}

	logging.Setup(cfg.Log)
	if envErr != nil {
		log.Info("No .env file found (ok in prod)")
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid config")
	}

	db, err := client.OpenDatabase(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Could not open database")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckout(registry)

	userRepo := repository.NewUserRepository(db)
	itemRepo := repository.NewItemRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	entitlementRepo := repository.NewEntitlementRepository(db)

	mercadopagoClient := client.NewMercadoPagoClient(&cfg.MercadoPago, cfg.PaymentMode, cfg.ProviderTimeout)
	paypalClient := client.NewPaypalClient(&cfg.Paypal, cfg.PaymentMode, cfg.ProviderTimeout)

	resolver := identity.NewResolver(identity.NewJWTExchanger(cfg.Auth.JWTSecret, cfg.Auth.Issuer, userRepo))
	couponEngine := service.NewCouponEngine(couponRepo)
	pricingResolver := service.NewPricingResolver(itemRepo, priceRepo, couponEngine)
	granter := service.NewEntitlementGranter(entitlementRepo)
	urls := service.NewURLBuilder(cfg.PublicBaseURL, cfg.WebhookSecret)

	checkoutService := service.NewCheckoutService(
		pricingResolver,
		couponEngine,
		urls,
		granter,
		checkoutMetrics,
		map[model.Network]string{
			model.NetworkMercadoPago: cfg.MercadoPago.DefaultCurrency,
			model.NetworkPaypal:      cfg.Paypal.DefaultCurrency,
			model.NetworkAny:         cfg.MercadoPago.DefaultCurrency,
		},
		mercadopagoClient,
		paypalClient,
	)
	confirmer := service.NewCallbackConfirmer(granter, checkoutMetrics, cfg.WebhookSecret, mercadopagoClient, paypalClient)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(checkoutService, confirmer, resolver, urls, registry)

	log.WithFields(log.Fields{
		"addr":        serverAddr,
		"mode":        cfg.PaymentMode,
		"environment": cfg.Environment.Name,
	}).Info("Starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("HTTP server shutdown error")
	}
}
