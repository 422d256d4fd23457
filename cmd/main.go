package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"sr-chatbot/handler"
	"sr-chatbot/internal/bootstrap"
	"sr-chatbot/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(app.Inquiry, app.Logger.Named("handler"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create handler: %v\n", err)
		_ = app.Close(ctx)
		os.Exit(1)
	}

	lambda.StartWithOptions(h.Handle, lambda.WithEnableSIGTERM(func() {
		_ = app.Close(context.Background())
	}))
}
