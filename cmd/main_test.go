package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/faceoff/internal/adapters/repository"
	app "github.com/okian/faceoff/internal/app"
	"github.com/okian/faceoff/internal/config"
	"github.com/okian/faceoff/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func startedService(opts ...app.Option) *app.Service {
	convey.So(logger.Init(logger.WithWriter(io.Discard)), convey.ShouldBeNil)
	svc := app.New(opts...)
	convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
	return svc
}

func TestMainConfiguration(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		t.Setenv("FACEOFF_ADDR", ":8080")
		t.Setenv("FACEOFF_MAX_ITEMS", "50")
		t.Setenv("FACEOFF_ALLOWED_ORIGINS", "https://a.example, https://b.example")

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.MaxItems, convey.ShouldEqual, 50)
			convey.So(cfg.Origins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
		})
	})

	convey.Convey("Given an unknown store", t, func() {
		t.Setenv("FACEOFF_STORE", "cassandra")

		convey.Convey("Then run fails before serving", func() {
			err := run(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "failed to load config")
		})
	})
}

func TestOpenStores(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		convey.So(logger.Init(logger.WithWriter(io.Discard)), convey.ShouldBeNil)
		cfg := config.New()

		convey.Convey("Then in-memory stores are used", func() {
			sessions, datasets, closeFn, err := openStores(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			defer closeFn()
			convey.So(sessions, convey.ShouldHaveSameTypeAs, &repository.MemorySessionStore{})
			convey.So(datasets, convey.ShouldHaveSameTypeAs, &repository.MemoryDatasetStore{})
		})
	})

	convey.Convey("Given a redis store that cannot be reached", t, func() {
		convey.So(logger.Init(logger.WithWriter(io.Discard)), convey.ShouldBeNil)
		cfg := config.New()
		cfg.Store = config.StoreRedis
		cfg.RedisAddr = "127.0.0.1:1"

		convey.Convey("Then opening fails", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _, _, err := openStores(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "failed to open redis")
		})
	})
}

func TestNewCatalog(t *testing.T) {
	convey.Convey("Given catalog credentials", t, func() {
		cfg := config.New()

		convey.Convey("When none are set", func() {
			convey.Convey("Then the catalog is disabled", func() {
				convey.So(newCatalog(cfg), convey.ShouldBeNil)
			})
		})

		convey.Convey("When both are set", func() {
			cfg.CatalogClientID = "id"
			cfg.CatalogClientSecret = "secret"

			convey.Convey("Then a catalog client is built", func() {
				convey.So(newCatalog(cfg), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestNewHandler(t *testing.T) {
	convey.Convey("Given the assembled handler", t, func() {
		svc := startedService(app.WithMaxItems(10))
		defer svc.Stop()
		cfg := config.New()
		cfg.AllowedOrigins = "https://app.example"
		h := newHandler(context.Background(), cfg, svc)

		serve := func(method, path, body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Origin", "https://app.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		convey.Convey("Then the documentation routes are served", func() {
			convey.So(serve(http.MethodGet, "/openapi.yaml", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/api-docs", "").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the business routes are served with CORS", func() {
			w := serve(http.MethodPost, "/sessions/u1", `{"item_ids":["a","b"]}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			convey.So(w.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "https://app.example")
		})

		convey.Convey("Then metrics are exposed on the health route", func() {
			convey.So(serve(http.MethodGet, "/healthz", "").Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		svc := startedService()
		defer svc.Stop()

		convey.Convey("Then they stop with their context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, svc)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
