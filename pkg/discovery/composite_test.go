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

var _ = Describe("CompositeClient", func() {
	var (
		ctrl          *gomock.Controller
		first, second *mocks.MockClient
		composite     *discovery.CompositeClient
		ctx           = context.Background()
		vault         = discovery.NewServiceInstance("vault1", "vault", "fake", 8200, false)
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		first = mocks.NewMockClient(ctrl)
		second = mocks.NewMockClient(ctrl)
		first.EXPECT().Description().Return("first").AnyTimes()
		second.EXPECT().Description().Return("second").AnyTimes()
		composite = discovery.NewCompositeClient(first, second)
	})

	It("describes its delegates", func() {
		Expect(composite.Description()).To(Equal("Composite Discovery Client [first, second]"))
		Expect(composite.Clients()).To(HaveLen(2))
	})

	It("stops at the first client with instances", func() {
		first.EXPECT().GetInstances(ctx, "vault").Return([]discovery.ServiceInstance{vault}, nil)
		Expect(composite.GetInstances(ctx, "vault")).To(ConsistOf(vault))
	})

	It("falls through empty and failing clients", func() {
		first.EXPECT().GetInstances(ctx, "vault").Return(nil, errors.New("timeout"))
		second.EXPECT().GetInstances(ctx, "vault").Return([]discovery.ServiceInstance{vault}, nil)
		Expect(composite.GetInstances(ctx, "vault")).To(ConsistOf(vault))
	})

	It("fails only when every client fails", func() {
		first.EXPECT().GetInstances(ctx, "vault").Return(nil, errors.New("timeout"))
		second.EXPECT().GetInstances(ctx, "vault").Return(nil, errors.New("forbidden"))
		_, err := composite.GetInstances(ctx, "vault")
		Expect(err).To(MatchError(ContainSubstring("all discovery clients failed")))
	})

	It("returns an empty list when nobody knows the service", func() {
		first.EXPECT().GetInstances(ctx, "vault").Return(nil, nil)
		second.EXPECT().GetInstances(ctx, "vault").Return([]discovery.ServiceInstance{}, nil)
		Expect(composite.GetInstances(ctx, "vault")).To(BeEmpty())
	})

	It("unions services", func() {
		first.EXPECT().GetServices(ctx).Return([]string{"vault", "consul"}, nil)
		second.EXPECT().GetServices(ctx).Return([]string{"vault", "redis"}, nil)
		Expect(composite.GetServices(ctx)).To(Equal([]string{"consul", "redis", "vault"}))
	})

	It("skips a client that fails to list services", func() {
		first.EXPECT().GetServices(ctx).Return(nil, errors.New("forbidden"))
		second.EXPECT().GetServices(ctx).Return([]string{"vault"}, nil)
		Expect(composite.GetServices(ctx)).To(Equal([]string{"vault"}))
	})

	It("fails service listing only when every client fails", func() {
		first.EXPECT().GetServices(ctx).Return(nil, errors.New("forbidden"))
		second.EXPECT().GetServices(ctx).Return(nil, errors.New("timeout"))
		_, err := composite.GetServices(ctx)
		Expect(err).To(MatchError(ContainSubstring("all discovery clients failed")))
		Expect(err).To(MatchError(ContainSubstring("via second")))
	})
})
