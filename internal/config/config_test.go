package config_test

import (
	"testing"
	"time"

	"github.com/okian/faceoff/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.MaxItems, convey.ShouldEqual, 2_000)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.SessionTTL(), convey.ShouldEqual, 30*24*time.Hour)
			convey.So(cfg.MetricsRefresh(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.CatalogEnabled(), convey.ShouldBeFalse)
			convey.So(cfg.Origins(), convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a comma separated origin list", t, func() {
		cfg := config.New()
		cfg.AllowedOrigins = " https://a.example , ,https://b.example"

		convey.Convey("Then blanks are dropped and entries trimmed", func() {
			convey.So(cfg.Origins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
		})
	})

	convey.Convey("Given a zero session ttl", t, func() {
		cfg := config.New()
		cfg.SessionTTLHours = 0

		convey.Convey("Then sessions never expire", func() {
			convey.So(cfg.SessionTTL(), convey.ShouldEqual, time.Duration(0))
		})
	})
}
