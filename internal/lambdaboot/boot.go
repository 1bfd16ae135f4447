// Package lambdaboot holds the cold-start bootstrap shared by the Lambda and
// the local server when they run against AWS: config, S3, DynamoDB, provider
// keys from SSM Parameter Store, and startup logging.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/auth"
	"github.com/fpang/caption-wizard/internal/logging"
	"github.com/fpang/caption-wizard/internal/s3util"
	"github.com/fpang/caption-wizard/internal/store"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitExporter returns an S3 exporter for bucket, or nil (with a warning)
// when no bucket is configured.
func InitExporter(cfg aws.Config, bucket string) *s3util.Exporter {
	if bucket == "" {
		log.Warn().Msg("Media bucket not set, edited images are returned inline")
		return nil
	}
	client := s3.NewFromConfig(cfg)
	return s3util.NewExporter(client, s3.NewPresignClient(client), bucket)
}

// InitDynamo creates a DynamoDB store for tableName.
func InitDynamo(cfg aws.Config, tableName string) *store.DynamoStore {
	if tableName == "" {
		log.Fatal().Msg("DynamoDB table name is required")
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// GetParameterAPI is the subset of the SSM client used for secrets.
type GetParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ProviderKeyParam returns the SSM parameter name holding provider's key.
func ProviderKeyParam(prefix, provider string) string {
	return prefix + "/" + provider + "-api-key"
}

// LoadProviderKey copies provider's API key from SSM Parameter Store into its
// environment variable unless the variable is already set. It returns the
// parameter name it read, or "" when nothing was fetched.
func LoadProviderKey(ctx context.Context, client GetParameterAPI, prefix, provider string) (string, error) {
	envVar := auth.EnvVar(provider)
	if os.Getenv(envVar) != "" {
		return "", nil
	}
	paramName := ProviderKeyParam(prefix, provider)
	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return paramName, err
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return paramName, nil
	}
	os.Setenv(envVar, *result.Parameter.Value)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("API key loaded from SSM")
	return paramName, nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
