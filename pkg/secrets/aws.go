package secrets

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AWSConfig configures the "aws" loader backed by AWS Secrets Manager.
type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SecretName      string `yaml:"secret_name"`
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint"`
}

func (a AWSConfig) Validate() error {
	if a.Region == "" {
		return errors.New("AWS region is required")
	}
	if a.SecretName == "" {
		return errors.New("AWS secret name is required")
	}
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return errors.New("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// CreateClient implements config.ClientFactory[*secretsmanager.Client].
// Without static credentials the default AWS credential chain is used.
func (a AWSConfig) CreateClient() (*secretsmanager.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(a.Region),
	}
	if a.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(a.Endpoint))
	}
	if a.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// SecretValueGetter is the subset of the Secrets Manager API the loader uses.
type SecretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSLoader reads keys from a single Secrets Manager secret. A JSON object
// secret is indexed by key; any other secret string is returned whole.
//
//	token: ${aws:vault_token}
type AWSLoader struct {
	client     SecretValueGetter
	secretName string
}

func NewAWSLoader(client SecretValueGetter, secretName string) *AWSLoader {
	return &AWSLoader{client: client, secretName: secretName}
}

func (a *AWSLoader) Resolve(ctx context.Context, key string) (string, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretName),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to read AWS secret %q", a.secretName)
	}
	if out.SecretString == nil {
		return "", errors.Errorf("AWS secret %q has no string value", a.secretName)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(*out.SecretString), &fields); err == nil {
		value, ok := fields[key].(string)
		if !ok {
			return "", errors.Errorf("key %q not found in AWS secret %q", key, a.secretName)
		}
		log.Debug().Str("secret_name", a.secretName).Str("key", key).Msg("Resolved secret from AWS Secrets Manager")
		return value, nil
	}

	log.Debug().Str("secret_name", a.secretName).Msg("Resolved plain text secret from AWS Secrets Manager")
	return *out.SecretString, nil
}

func (a *AWSLoader) Name() string {
	return "AWS Secrets Manager"
}
