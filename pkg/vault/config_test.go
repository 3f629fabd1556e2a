package vault_test

import (
	"github.com/animalet/sargantana-discovery/pkg/vault"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	It("requires an address without discovery", func() {
		Expect(vault.Config{}.Validate()).To(MatchError(ContainSubstring("address is required")))
		Expect(vault.Config{Address: "vault:8200"}.Validate()).To(MatchError(ContainSubstring("absolute URL")))
		Expect(vault.Config{Address: "https://vault:8200"}.Validate()).To(Succeed())
	})

	It("does not need an address with discovery", func() {
		cfg := vault.Config{Discovery: vault.DiscoveryConfig{Enabled: true}}
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.EffectiveScheme()).To(Equal("https"))
		Expect(cfg.Discovery.EffectiveServiceID()).To(Equal("vault"))
	})

	It("rejects unknown schemes", func() {
		cfg := vault.Config{Scheme: "ftp", Discovery: vault.DiscoveryConfig{Enabled: true}}
		Expect(cfg.Validate()).To(MatchError(ContainSubstring(`unsupported Vault scheme "ftp"`)))
	})

	It("needs both token and path for secrets", func() {
		Expect(vault.Config{Token: "t"}.HasSecrets()).To(BeFalse())
		Expect(vault.Config{Token: "t", Path: "secret/data/app"}.HasSecrets()).To(BeTrue())
	})
})
