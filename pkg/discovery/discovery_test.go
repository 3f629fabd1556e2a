package discovery_test

import (
	"context"

	"github.com/animalet/sargantana-discovery/pkg/discovery"
	"github.com/animalet/sargantana-discovery/pkg/discovery/mocks"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"go.uber.org/mock/gomock"
)

var _ = Describe("ServiceInstance", func() {
	It("derives scheme and URI from the secure flag", func() {
		plain := discovery.NewServiceInstance("vault1", "vault", "fake", 8200, false)
		Expect(plain.Scheme()).To(Equal("http"))
		Expect(plain.URI().String()).To(Equal("http://fake:8200"))

		secure := discovery.NewServiceInstance("vault1", "vault", "fake", 8200, true)
		Expect(secure.URI().String()).To(Equal("https://fake:8200"))
		Expect(secure.String()).To(Equal("vault/vault1@fake:8200"))
	})

	It("brackets IPv6 hosts", func() {
		instance := discovery.NewServiceInstance("a", "vault", "fd00::1", 8200, true)
		Expect(instance.HostPort()).To(Equal("[fd00::1]:8200"))
	})

	It("validates host and port", func() {
		Expect(discovery.ServiceInstance{Port: 1}.Validate()).To(MatchError(ContainSubstring("host is required")))
		Expect(discovery.ServiceInstance{Host: "h", Port: 70000}.Validate()).To(MatchError(ContainSubstring("out of range")))
		Expect(discovery.ServiceInstance{Host: "h", Port: 8200}.Validate()).To(Succeed())
	})
})

var _ = Describe("FirstInstance", func() {
	var (
		ctrl   *gomock.Controller
		client *mocks.MockClient
		ctx    = context.Background()
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		client = mocks.NewMockClient(ctrl)
		client.EXPECT().Description().Return("mock").AnyTimes()
	})

	It("returns the first instance", func() {
		client.EXPECT().GetInstances(gomock.Any(), "vault").Return([]discovery.ServiceInstance{
			discovery.NewServiceInstance("vault1", "vault", "fake", 8200, false),
			discovery.NewServiceInstance("vault2", "vault", "other", 8200, false),
		}, nil)

		instance, err := discovery.FirstInstance(ctx, client, "vault")
		Expect(err).NotTo(HaveOccurred())
		Expect(instance.InstanceID).To(Equal("vault1"))
	})

	It("returns ErrNoInstances for an empty list", func() {
		client.EXPECT().GetInstances(gomock.Any(), "vault").Return(nil, nil)
		_, err := discovery.FirstInstance(ctx, client, "vault")
		Expect(errors.Is(err, discovery.ErrNoInstances)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring(`service "vault" via mock`))
	})

	It("wraps client errors", func() {
		client.EXPECT().GetInstances(gomock.Any(), "vault").Return(nil, errors.New("forbidden"))
		_, err := discovery.FirstInstance(ctx, client, "vault")
		Expect(err).To(MatchError(ContainSubstring("forbidden")))
		Expect(errors.Is(err, discovery.ErrNoInstances)).To(BeFalse())
	})
})
