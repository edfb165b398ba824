package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/pipewise/pipeline-engine/internal/config"
	"github.com/pipewise/pipeline-engine/internal/tips"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share
// the same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case sqs.ServiceID, bedrockruntime.ServiceID:
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// BuildTipCompleter assembles the tip backend per TIP_PROVIDER: "bedrock",
// "gemini", "auto" (bedrock primary, gemini fallback when both are
// configured) or "none". A nil completer disables generation; every tip is
// then deterministic.
func BuildTipCompleter(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) tips.Completer {
	var bedrock tips.Completer
	if cfg.BedrockModelID != "" && cfg.TipProvider != "gemini" && cfg.TipProvider != "none" {
		c, err := tips.NewBedrockCompleter(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		if err != nil {
			logger.Warn("tips: bedrock unavailable", "error", err)
		} else {
			bedrock = c
		}
	}

	var gemini tips.Completer
	if cfg.GeminiAPIKey != "" && cfg.TipProvider != "bedrock" && cfg.TipProvider != "none" {
		c, err := tips.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("tips: gemini unavailable", "error", err)
		} else {
			gemini = c
		}
	}

	switch {
	case bedrock != nil && gemini != nil:
		return tips.NewFallbackCompleter(bedrock, gemini, logger)
	case bedrock != nil:
		return bedrock
	case gemini != nil:
		return gemini
	default:
		logger.Info("tips: no generation backend configured, using deterministic tips")
		return nil
	}
}
