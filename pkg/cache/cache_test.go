package cache

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemoryStore", func() {
	var (
		store *MemoryStore
		now   time.Time
		ctx   = context.Background()
	)

	BeforeEach(func() {
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		store = NewMemoryStore()
		store.now = func() time.Time { return now }
	})

	It("returns stored values until they expire", func() {
		Expect(store.Set(ctx, "vault", []byte("payload"), time.Minute)).To(Succeed())

		value, ok, err := store.Get(ctx, "vault")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(string(value)).To(Equal("payload"))

		now = now.Add(time.Minute)
		_, ok, err = store.Get(ctx, "vault")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("hands out copies", func() {
		Expect(store.Set(ctx, "k", []byte("abc"), time.Minute)).To(Succeed())
		value, _, _ := store.Get(ctx, "k")
		value[0] = 'x'
		again, _, _ := store.Get(ctx, "k")
		Expect(string(again)).To(Equal("abc"))
	})

	It("forgets everything on close", func() {
		Expect(store.Set(ctx, "k", []byte("abc"), time.Minute)).To(Succeed())
		Expect(store.Close()).To(Succeed())
		_, ok, _ := store.Get(ctx, "k")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Config", func() {
	It("defaults to an in-memory store", func() {
		cfg := Config{}
		Expect(cfg.Validate()).To(Succeed())
		store, err := cfg.CreateClient()
		Expect(err).NotTo(HaveOccurred())
		Expect(store).To(BeAssignableToTypeOf(&MemoryStore{}))
		Expect(cfg.EffectiveTTL()).To(Equal(DefaultTTL))
		Expect(cfg.KeyPrefix()).To(Equal(DefaultPrefix))
	})

	It("requires the sub-section of remote stores", func() {
		Expect(Config{Type: "redis"}.Validate()).To(MatchError(ContainSubstring("requires a redis section")))
		Expect(Config{Type: "memcached"}.Validate()).To(MatchError(ContainSubstring("requires a memcached section")))
		Expect(Config{Type: "etcd"}.Validate()).To(MatchError(ContainSubstring(`unknown cache type "etcd"`)))
		Expect(Config{TTL: -time.Second}.Validate()).To(HaveOccurred())
	})

	It("builds a lazily dialled redis store", func() {
		cfg := Config{Type: "redis", TTL: time.Second, Prefix: "p:", Redis: &RedisConfig{Address: "localhost:6379"}}
		store, err := cfg.CreateClient()
		Expect(err).NotTo(HaveOccurred())
		Expect(store).To(BeAssignableToTypeOf(&RedisStore{}))
		Expect(store.Close()).To(Succeed())
	})
})
