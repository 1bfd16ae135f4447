// Package main runs the caption wizard API on AWS Lambda behind an API
// Gateway HTTP API (payload format 2.0).
//
// Wizard state and profiles live in DynamoDB (DYNAMO_TABLE_NAME), edited
// images are written to S3 (MEDIA_BUCKET_NAME) and the provider key is read
// from SSM under SSM_PARAM_PREFIX when it is not in the environment.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/app"
	"github.com/fpang/caption-wizard/internal/config"
	"github.com/fpang/caption-wizard/internal/lambdaboot"
	"github.com/fpang/caption-wizard/internal/logging"
)

var captionApp *app.App

func init() {
	initStart := time.Now()
	logging.Init()

	cfg := config.Load()
	if cfg.Storage.TableName == "" {
		log.Warn().Msg("DYNAMO_TABLE_NAME not set; wizard state will not survive cold starts")
	}

	ctx := context.Background()
	clients := lambdaboot.InitAWS(ctx)

	startup := logging.NewStartupLogger("caption-lambda").
		CommitHash(commitHash).
		Config("ssmPrefix", cfg.Storage.SSMPrefix)

	a, err := app.Build(ctx, cfg, &clients, startup)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Provider.Name).Msg("Failed to build API")
	}
	captionApp = a

	startup.InitDuration(time.Since(initStart)).Log()
}

func main() {
	adapter := httpadapter.NewV2(captionApp.Handler)
	lambda.Start(adapter.ProxyWithContext)
}
