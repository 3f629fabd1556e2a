package secrets_test

import (
	"context"

	"github.com/animalet/sargantana-discovery/pkg/secrets"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

type fakeSecretsManager struct {
	value *string
	err   error
	asked []string
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = append(f.asked, aws.ToString(in.SecretId))
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

var _ = Describe("AWSLoader", func() {
	ctx := context.Background()

	It("indexes JSON secrets by key", func() {
		fake := &fakeSecretsManager{value: aws.String(`{"vault_token":"s.abc","other":"x"}`)}
		loader := secrets.NewAWSLoader(fake, "bootstrap")
		Expect(loader.Resolve(ctx, "vault_token")).To(Equal("s.abc"))
		Expect(fake.asked).To(ConsistOf("bootstrap"))
	})

	It("fails when the JSON key is absent", func() {
		loader := secrets.NewAWSLoader(&fakeSecretsManager{value: aws.String(`{"a":"b"}`)}, "bootstrap")
		_, err := loader.Resolve(ctx, "vault_token")
		Expect(err).To(MatchError(ContainSubstring(`key "vault_token" not found`)))
	})

	It("returns plain text secrets whole", func() {
		loader := secrets.NewAWSLoader(&fakeSecretsManager{value: aws.String("plain")}, "bootstrap")
		Expect(loader.Resolve(ctx, "ignored")).To(Equal("plain"))
	})

	It("propagates API errors", func() {
		loader := secrets.NewAWSLoader(&fakeSecretsManager{err: errors.New("denied")}, "bootstrap")
		_, err := loader.Resolve(ctx, "k")
		Expect(err).To(MatchError(ContainSubstring("denied")))
	})

	It("rejects binary secrets", func() {
		loader := secrets.NewAWSLoader(&fakeSecretsManager{}, "bootstrap")
		_, err := loader.Resolve(ctx, "k")
		Expect(err).To(MatchError(ContainSubstring("has no string value")))
	})

	Context("AWSConfig", func() {
		It("validates required fields", func() {
			Expect(secrets.AWSConfig{SecretName: "s"}.Validate()).To(MatchError(ContainSubstring("region is required")))
			Expect(secrets.AWSConfig{Region: "eu-west-1"}.Validate()).To(MatchError(ContainSubstring("secret name is required")))
			Expect(secrets.AWSConfig{Region: "eu-west-1", SecretName: "s", AccessKeyID: "id"}.Validate()).To(HaveOccurred())
			Expect(secrets.AWSConfig{Region: "eu-west-1", SecretName: "s"}.Validate()).To(Succeed())
		})

		It("creates a client with static credentials and endpoint", func() {
			client, err := secrets.AWSConfig{
				Region:          "eu-west-1",
				SecretName:      "s",
				AccessKeyID:     "id",
				SecretAccessKey: "key",
				Endpoint:        "http://localhost:4566",
			}.CreateClient()
			Expect(err).NotTo(HaveOccurred())
			Expect(client).NotTo(BeNil())
		})
	})
})
