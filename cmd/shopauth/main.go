package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/app"
)

func main() {
	registerWebhooks := flag.Bool("register-webhooks", false,
		"register Shopify webhook subscriptions and exit")
	flag.Parse()

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if *registerWebhooks {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := application.RegisterWebhooks(ctx); err != nil {
			log.Fatalf("webhook registration failed: %v", err)
		}
		return
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
