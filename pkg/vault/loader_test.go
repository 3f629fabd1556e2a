package vault_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/animalet/sargantana-discovery/pkg/vault"
	"github.com/hashicorp/vault/api"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// newVaultStub serves KV v2 data under secret/data/app and KV v1 data under
// kv/app, and checks the token header.
func newVaultStub() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/secret/data/app", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"GOOGLE_KEY":"test-google-key"},"metadata":{"version":1}}}`))
	})
	mux.HandleFunc("/v1/kv/app", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"SESSION_SECRET":"s3cr3t"}}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[]}`))
	})
	return httptest.NewServer(mux)
}

var _ = Describe("SecretLoader", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		client *api.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = newVaultStub()
		DeferCleanup(server.Close)

		provider, err := vault.NewStaticEndpointProvider(server.URL)
		Expect(err).NotTo(HaveOccurred())
		client, err = vault.NewClient(ctx, vault.Config{Token: "root", Namespace: "team"}, provider)
		Expect(err).NotTo(HaveOccurred())
	})

	It("configures the client from the endpoint and settings", func() {
		Expect(client.Address()).To(Equal(server.URL))
		Expect(client.Token()).To(Equal("root"))
		Expect(client.Namespace()).To(Equal("team"))
	})

	It("reads KV v2 secrets", func() {
		loader := vault.NewSecretLoader(client, "secret/data/app")
		Expect(loader.Resolve(ctx, "GOOGLE_KEY")).To(Equal("test-google-key"))
		Expect(loader.Name()).To(Equal("Vault"))
	})

	It("reads KV v1 secrets", func() {
		loader := vault.NewSecretLoader(client, "kv/app")
		Expect(loader.Resolve(ctx, "SESSION_SECRET")).To(Equal("s3cr3t"))
	})

	It("fails on a missing key", func() {
		_, err := vault.NewSecretLoader(client, "kv/app").Resolve(ctx, "NOPE")
		Expect(err).To(MatchError(ContainSubstring(`secret "NOPE" not found`)))
	})

	It("fails on a missing path", func() {
		_, err := vault.NewSecretLoader(client, "kv/missing").Resolve(ctx, "NOPE")
		Expect(err).To(MatchError(ContainSubstring(`no secret found at Vault path "kv/missing"`)))
	})

	It("surfaces permission errors", func() {
		client.SetToken("wrong")
		_, err := vault.NewSecretLoader(client, "secret/data/app").Resolve(ctx, "GOOGLE_KEY")
		Expect(err).To(MatchError(ContainSubstring("failed to read secret")))
	})
})
