package main

import (
	"context"
	"log"
	"time"

	"github.com/jjcims/jjcims/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer application.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.SelfCheck(ctx); err != nil {
		log.Fatalf("self-check failed: %v", err)
	}

	application.Logger().Info("credential core ready",
		"store", application.StorePath())
}
