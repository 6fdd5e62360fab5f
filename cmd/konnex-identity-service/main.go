package main

import (
	"context"
	"fmt"
	"os"

	"github.com/konnexhq/identity-service/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	// All construction goes through the Wire-generated injector; the
	// cleanup releases connections and flushes loggers on exit.
	app, cleanup, err := bootstrap.InitializeApp(ctx)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := app.Run(ctx); err != nil {
		fmt.Printf("Application run failed: %v\n", err)
		os.Exit(1)
	}
}
