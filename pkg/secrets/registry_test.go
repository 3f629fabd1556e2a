package secrets_test

import (
	"context"

	"github.com/animalet/sargantana-discovery/pkg/secrets"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

type mapLoader map[string]string

func (m mapLoader) Resolve(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func (m mapLoader) Name() string { return "map" }

var _ = Describe("Registry", func() {
	ctx := context.Background()

	AfterEach(func() {
		secrets.Unregister("map")
	})

	It("always has the env loader", func() {
		Expect(secrets.Lookup("env")).NotTo(BeNil())
		Expect(secrets.Prefixes()).To(ContainElement("env"))
	})

	It("defaults to env when the reference has no prefix", func() {
		GinkgoT().Setenv("SECRETS_REGISTRY_TEST", "from-env")
		value, err := secrets.Resolve(ctx, "SECRETS_REGISTRY_TEST")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("from-env"))
	})

	It("splits on the first colon only", func() {
		secrets.Register("map", mapLoader{"db:password": "hunter2"})
		value, err := secrets.Resolve(ctx, "map:db:password")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("hunter2"))
	})

	It("fails for unknown prefixes", func() {
		_, err := secrets.Resolve(ctx, "nope:key")
		Expect(err).To(MatchError(ContainSubstring(`no secret loader registered for prefix "nope"`)))
	})

	It("wraps loader errors with the loader name", func() {
		secrets.Register("map", mapLoader{})
		_, err := secrets.Resolve(ctx, "map:missing")
		Expect(err).To(MatchError(ContainSubstring("using map loader")))
	})

	It("forgets unregistered loaders", func() {
		secrets.Register("map", mapLoader{})
		secrets.Unregister("map")
		Expect(secrets.Lookup("map")).To(BeNil())
	})
})
