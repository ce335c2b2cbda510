package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeFetcher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeFetcher) FetchToken(_ context.Context) (Token, error) {
	n := f.calls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return Token{}, f.err
	}
	return Token{AccessToken: "tok-" + string(rune('0'+n)), ExpiresIn: time.Hour}, nil
}

// gatedFetcher blocks until released and fails if its own context ends first.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) FetchToken(ctx context.Context) (Token, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	select {
	case <-f.release:
		return Token{AccessToken: "shared", ExpiresIn: time.Hour}, nil
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

func TestTokenCache(t *testing.T) {
	Convey("Given an empty token cache", t, func() {
		ctx := context.Background()
		fetcher := &fakeFetcher{}
		cache := NewTokenCache(fetcher, time.Minute)
		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

		Convey("When a token is requested", func() {
			tok, err := cache.GetOrRefresh(ctx, now)

			Convey("Then it is fetched once and cached", func() {
				So(err, ShouldBeNil)
				So(tok, ShouldEqual, "tok-1")
				So(cache.ExpiresAt(), ShouldEqual, now.Add(time.Hour))

				again, err := cache.GetOrRefresh(ctx, now.Add(30*time.Minute))
				So(err, ShouldBeNil)
				So(again, ShouldEqual, "tok-1")
				So(fetcher.calls.Load(), ShouldEqual, 1)
			})

			Convey("And the token is inside the skew window", func() {
				tok, err := cache.GetOrRefresh(ctx, now.Add(59*time.Minute+30*time.Second))

				Convey("Then it is refreshed early", func() {
					So(err, ShouldBeNil)
					So(tok, ShouldEqual, "tok-2")
					So(fetcher.calls.Load(), ShouldEqual, 2)
				})
			})
		})

		Convey("When many callers race on a stale cache", func() {
			fetcher.delay = 20 * time.Millisecond
			var wg sync.WaitGroup
			results := make([]string, 16)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], _ = cache.GetOrRefresh(ctx, now)
				}(i)
			}
			wg.Wait()

			Convey("Then they share one refresh", func() {
				So(fetcher.calls.Load(), ShouldEqual, 1)
				for _, r := range results {
					So(r, ShouldEqual, "tok-1")
				}
			})
		})
	})

	Convey("Given a failing fetcher", t, func() {
		boom := errors.New("boom")
		cache := NewTokenCache(&fakeFetcher{err: boom}, DefaultSkew)

		Convey("Then the error is returned and nothing is cached", func() {
			_, err := cache.GetOrRefresh(context.Background(), time.Now())
			So(errors.Is(err, boom), ShouldBeTrue)
			So(cache.ExpiresAt().IsZero(), ShouldBeTrue)
		})
	})

	Convey("Given a refresh started by a caller that gives up", t, func() {
		fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
		cache := NewTokenCache(fetcher, DefaultSkew)
		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

		firstCtx, cancelFirst := context.WithCancel(context.Background())
		firstErr := make(chan error, 1)
		go func() {
			_, err := cache.GetOrRefresh(firstCtx, now)
			firstErr <- err
		}()
		<-fetcher.started

		type result struct {
			tok string
			err error
		}
		waiter := make(chan result, 1)
		go func() {
			tok, err := cache.GetOrRefresh(context.Background(), now)
			waiter <- result{tok, err}
		}()

		cancelFirst()
		gaveUp := <-firstErr
		close(fetcher.release)
		got := <-waiter

		Convey("Then only that caller sees its cancellation", func() {
			So(errors.Is(gaveUp, context.Canceled), ShouldBeTrue)
			So(got.err, ShouldBeNil)
			So(got.tok, ShouldEqual, "shared")
			So(fetcher.calls.Load(), ShouldEqual, 1)

			cached, err := cache.GetOrRefresh(context.Background(), now)
			So(err, ShouldBeNil)
			So(cached, ShouldEqual, "shared")
		})
	})
}
