package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	app, err := server.NewApp(ctx, cfg, logger)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	app.Run(ctx)

}
