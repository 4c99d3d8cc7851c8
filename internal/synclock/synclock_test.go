package synclock_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/go-redis/redismock/v9"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payroll-admin/internal/synclock"
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

var _ = Describe("RedisLocker", func() {
	var (
		ctx    context.Context
		mock   redismock.ClientMock
		locker *synclock.RedisLocker
		key    string
	)

	BeforeEach(func() {
		ctx = context.Background()
		client, m := redismock.NewClientMock()
		mock = m
		locker = synclock.NewRedisLocker(client, slog.New(slog.NewTextHandler(io.Discard, nil)),
			synclock.WithTokenSource(func() string { return "token-1" }))
		key = synclock.DeviceKey(7)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("takes the lock with SETNX and releases only its own token", func() {
		mock.ExpectSetNX(key, "token-1", time.Minute).SetVal(true)
		mock.ExpectEval(releaseScript, []string{key}, "token-1").SetVal(int64(1))

		release, ok, err := locker.Acquire(ctx, key, time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		release()
	})

	It("reports a held lock", func() {
		mock.ExpectSetNX(key, "token-1", time.Minute).SetVal(false)

		release, ok, err := locker.Acquire(ctx, key, time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(release).To(BeNil())
	})

	It("surfaces redis errors", func() {
		mock.ExpectSetNX(key, "token-1", time.Minute).SetErr(errors.New("connection refused"))

		_, ok, err := locker.Acquire(ctx, key, time.Minute)
		Expect(err).To(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("LocalLocker", func() {
	It("grants one holder per key until release", func() {
		locker := synclock.NewLocalLocker()
		ctx := context.Background()

		release, ok, err := locker.Acquire(ctx, "a", time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		_, ok, _ = locker.Acquire(ctx, "a", time.Minute)
		Expect(ok).To(BeFalse())

		_, ok, _ = locker.Acquire(ctx, "b", time.Minute)
		Expect(ok).To(BeTrue())

		release()
		_, ok, _ = locker.Acquire(ctx, "a", time.Minute)
		Expect(ok).To(BeTrue())
	})

	It("lets an expired lease be taken over", func() {
		locker := synclock.NewLocalLocker()
		ctx := context.Background()

		stale, ok, _ := locker.Acquire(ctx, "a", time.Nanosecond)
		Expect(ok).To(BeTrue())
		time.Sleep(time.Millisecond)

		_, ok, _ = locker.Acquire(ctx, "a", time.Minute)
		Expect(ok).To(BeTrue())

		stale()
		_, ok, _ = locker.Acquire(ctx, "a", time.Minute)
		Expect(ok).To(BeFalse())
	})
})
