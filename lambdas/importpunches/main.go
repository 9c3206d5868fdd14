package main

import (
	"context"

	"accessadmin.com/accessadmin/attendance/app"
	"accessadmin.com/accessadmin/config"
	"accessadmin.com/accessadmin/infrastructure/filesystem"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func HandleRequest(ctx context.Context, event events.S3Event) ([]FileResult, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	config.SetLogLevel(cfg.LogLevel)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	h := &handler{
		importer: a.Importer,
		open: func(ctx context.Context, name string) (objectReader, error) {
			return filesystem.NewBucket(ctx, name)
		},
		logger: config.GetLogger(),
	}
	return h.handle(ctx, event)
}

func main() {
	lambda.Start(HandleRequest)
}
