// Package lambdaboot provides the cold-start bootstrap shared by swipe-lambda
// and swipe-web: AWS config, the session store and blob store selected by
// configuration, the credential resolver, and startup logging.
//
// AWS clients are created only when a configured backend needs them, so a
// local server with sqlite and a photo directory never loads AWS config.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/auth"
	"github.com/fpang/swipe-story/internal/config"
	"github.com/fpang/swipe-story/internal/logging"
	"github.com/fpang/swipe-story/internal/storage"
	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/story"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with an SSM client.
func InitAWS(ctx context.Context) (AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return AWSClients{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}, nil
}

// InitS3 creates an S3 blob store with a presigner for direct photo URLs.
func InitS3(cfg aws.Config, bucket string, expiry time.Duration) *storage.S3Store {
	client := s3.NewFromConfig(cfg)
	return storage.NewS3Store(client, s3.NewPresignClient(client), bucket, expiry)
}

// InitDynamo creates a DynamoDB session store.
func InitDynamo(cfg aws.Config, tableName string) *store.DynamoStore {
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// Backends is what a server needs from its environment.
type Backends struct {
	Store store.Store
	Blobs storage.Store
	Keys  *auth.Resolver

	// UsesAWS reports whether any backend, or the key resolver, talks to AWS.
	UsesAWS bool

	closers []func() error
}

// Close releases the backends that hold resources.
func (b *Backends) Close() {
	for _, c := range b.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Failed to close backend")
		}
	}
}

// Options tunes OpenBackends.
type Options struct {
	// UseSSM resolves API keys from SSM Parameter Store when the environment
	// does not hold them. It forces AWS config to load.
	UseSSM bool
}

// OpenBackends opens the store and blob backends cfg selects.
func OpenBackends(ctx context.Context, cfg *config.Config, opts Options) (*Backends, error) {
	b := &Backends{}
	needAWS := opts.UseSSM || cfg.Store.Backend == config.StoreDynamo || cfg.Blobs.Backend == config.BlobsS3

	var clients AWSClients
	if needAWS {
		var err error
		if clients, err = InitAWS(ctx); err != nil {
			return nil, err
		}
		b.UsesAWS = true
	}

	switch cfg.Store.Backend {
	case config.StoreMemory:
		b.Store = store.NewMemoryStore()
	case config.StoreSQLite:
		st, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.Store = st
		b.closers = append(b.closers, st.Close)
	case config.StoreDynamo:
		b.Store = InitDynamo(clients.Config, cfg.Store.DynamoTable)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	switch cfg.Blobs.Backend {
	case config.BlobsDir:
		dir, err := storage.NewDirStore(cfg.Blobs.Dir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Blobs = dir
	case config.BlobsS3:
		b.Blobs = InitS3(clients.Config, cfg.Blobs.Bucket, cfg.Blobs.PresignExpiry)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blobs.Backend)
	}

	var ssmClient auth.ParameterReader
	if opts.UseSSM {
		ssmClient = clients.SSM
	}
	b.Keys = auth.NewResolver(ssmClient, cfg.Env)
	return b, nil
}

// ConfiguredServices reports which video vendors and Gemini have an API key.
func ConfiguredServices(ctx context.Context, keys story.Credentials) map[string]bool {
	configured := make(map[string]bool, len(story.Services)+1)
	for _, name := range append([]string{"gemini"}, story.Services...) {
		_, err := keys.APIKey(ctx, name)
		configured[name] = err == nil
		if err != nil && !auth.IsMissingKey(err) {
			log.Warn().Err(err).Str("service", name).Msg("API key lookup failed")
		}
	}
	return configured
}

// VideoServices lists the configured video vendors, preferred first.
func VideoServices(configured map[string]bool, preferred string) []string {
	var out []string
	if configured[preferred] {
		out = append(out, preferred)
	}
	for _, name := range story.Services {
		if configured[name] && name != preferred {
			out = append(out, name)
		}
	}
	return out
}

// NewVideoClient builds every vendor against keys and the story client over st.
func NewVideoClient(cfg *config.Config, keys story.Credentials, st store.Store) *story.Client {
	gens := story.NewGenerators(story.Options{Credentials: keys}, cfg.BaseURL)
	policy := story.RetryPolicy{
		MaxAttempts: cfg.Video.MaxAttempts,
		Interval:    cfg.Video.PollInterval,
		Backoff:     cfg.Video.Backoff,
		MaxInterval: cfg.Video.MaxInterval,
	}
	return story.NewClient(gens, st, policy, cfg.Video.Service)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
