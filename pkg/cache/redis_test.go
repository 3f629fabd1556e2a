package cache

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

// fakeConn answers GET and SETEX from a map and records every command.
type fakeConn struct {
	data     map[string][]byte
	commands []string
	args     [][]any
}

func (f *fakeConn) Close() error { return nil }
func (f *fakeConn) Err() error   { return nil }
func (f *fakeConn) Send(string, ...any) error {
	return errors.New("pipelining not supported")
}
func (f *fakeConn) Flush() error          { return nil }
func (f *fakeConn) Receive() (any, error) { return nil, errors.New("not supported") }

func (f *fakeConn) Do(cmd string, args ...any) (any, error) {
	if cmd == "" {
		// flush issued by the pool when a connection is released
		return nil, nil
	}
	f.commands = append(f.commands, cmd)
	f.args = append(f.args, args)
	switch cmd {
	case "GET":
		if v, ok := f.data[args[0].(string)]; ok {
			return v, nil
		}
		return nil, nil
	case "SETEX":
		f.data[args[0].(string)] = args[2].([]byte)
		return "OK", nil
	}
	return nil, errors.Errorf("unexpected command %s", cmd)
}

var _ = Describe("RedisStore", func() {
	var (
		conn  *fakeConn
		store *RedisStore
		ctx   = context.Background()
	)

	BeforeEach(func() {
		conn = &fakeConn{data: map[string][]byte{}}
		pool := &redis.Pool{Dial: func() (redis.Conn, error) { return conn, nil }}
		store = NewRedisStore(pool, "discovery:")
	})

	It("reports a miss for absent keys", func() {
		_, ok, err := store.Get(ctx, "vault")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("writes with SETEX under the prefix and reads back", func() {
		Expect(store.Set(ctx, "vault", []byte("[]"), 90*time.Second)).To(Succeed())
		Expect(conn.commands).To(ContainElement("SETEX"))
		Expect(conn.args[0]).To(Equal([]any{"discovery:vault", int64(90), []byte("[]")}))

		value, ok, err := store.Get(ctx, "vault")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal([]byte("[]")))
	})

	It("never writes a zero expiry", func() {
		Expect(store.Set(ctx, "vault", []byte("x"), time.Millisecond)).To(Succeed())
		Expect(conn.args[0][1]).To(Equal(int64(1)))
	})
})

var _ = Describe("RedisConfig", func() {
	It("validates its fields", func() {
		Expect(RedisConfig{}.Validate()).To(MatchError(ContainSubstring("address must be set")))
		Expect(RedisConfig{Address: "a", MaxIdle: -1}.Validate()).To(HaveOccurred())
		Expect(RedisConfig{Address: "a", IdleTimeout: -1}.Validate()).To(HaveOccurred())
		Expect(RedisConfig{Address: "a", Database: -1}.Validate()).To(HaveOccurred())
		Expect(RedisConfig{Address: "a", TLS: &TLSConfig{CertFile: "c"}}.Validate()).To(MatchError(ContainSubstring("cert_file and key_file")))
		Expect(RedisConfig{Address: "a", MaxIdle: 2, IdleTimeout: time.Minute}.Validate()).To(Succeed())
	})
})
