// Package main is the Lambda entry point for the swipe-story API.
//
// It serves the same chi router as swipe-web behind API Gateway (HTTP API,
// payload v2), with sessions and video tasks in DynamoDB and photos in S3.
// Video tasks have no background poller here: each status request, or the
// progress websocket, advances the task by polling the vendor once.
//
// Security:
//   - Origin-verify middleware blocks direct API Gateway access (CloudFront-only)
//   - API keys come from SSM Parameter Store unless set in the environment
//   - Photos are served through short-lived presigned S3 URLs
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/api"
	"github.com/fpang/swipe-story/internal/cli"
	"github.com/fpang/swipe-story/internal/config"
	"github.com/fpang/swipe-story/internal/lambdaboot"
	"github.com/fpang/swipe-story/internal/logging"
	"github.com/fpang/swipe-story/internal/session"
)

// Set at build time via -ldflags.
var (
	commitHash = "dev"
	buildTime  = ""
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	initStart := time.Now()
	logging.InitJSON()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	cfg.Store.Backend = config.StoreDynamo
	cfg.Blobs.Backend = config.BlobsS3
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	backends, err := lambdaboot.OpenBackends(ctx, cfg, lambdaboot.Options{UseSSM: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open backends")
	}

	configured := lambdaboot.ConfiguredServices(ctx, backends.Keys)
	// Key validation costs a Gemini call on every cold start.
	narr := cli.InitNarrator(ctx, backends.Keys, cfg.Gemini.Model, false)
	originSecret := os.Getenv("ORIGIN_VERIFY_SECRET")

	router := api.NewRouter(api.Config{
		Sessions:           session.NewManager(backends.Store),
		Blobs:              backends.Blobs,
		Videos:             lambdaboot.NewVideoClient(cfg, backends.Keys, backends.Store),
		Narrator:           narr,
		ServiceName:        "swipe-lambda",
		Configured:         configured,
		Metrics:            true,
		OriginVerifySecret: originSecret,
	})
	adapter = httpadapter.NewV2(router)

	startup := lambdaboot.StartupLog("swipe-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Resource("dynamoTables", "sessions", cfg.Store.DynamoTable).
		Resource("s3Buckets", "media", cfg.Blobs.Bucket).
		Resource("ssmParams", "geminiKey", backends.Keys.ParamName("gemini")).
		Config("videoService", cfg.Video.Service).
		Feature("gemini", narr != nil).
		Feature("originVerify", originSecret != "").
		Feature("metrics", true)
	for _, name := range lambdaboot.VideoServices(configured, cfg.Video.Service) {
		startup = startup.Feature("video:"+name, true)
	}
	startup.Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
