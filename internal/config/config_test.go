package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"legend-tracker/internal/config"

	"github.com/rs/zerolog"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoad(t *testing.T) {
	noEnvFile := config.Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")}

	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When only the token is set", func() {
			t.Setenv("LEGEND_COC_API_TOKEN", "secret")

			cfg, err := config.Load(noEnvFile, zerolog.Nop())

			convey.Convey("Then the defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.CocAPIToken, convey.ShouldEqual, "secret")
				convey.So(cfg.TimeZone, convey.ShouldEqual, "Asia/Kolkata")
				convey.So(cfg.ResetHour, convey.ShouldEqual, 10)
				convey.So(cfg.ResetMinute, convey.ShouldEqual, 30)
				convey.So(cfg.PollInterval, convey.ShouldEqual, time.Minute)
				convey.So(cfg.FetchAttempts, convey.ShouldEqual, 3)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "file")
				convey.So(cfg.Sinks(), convey.ShouldResemble, []string{"log"})
			})
		})

		convey.Convey("When the token is missing", func() {
			t.Setenv("LEGEND_COC_API_TOKEN", "")

			_, err := config.Load(noEnvFile, zerolog.Nop())

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "LEGEND_COC_API_TOKEN is required")
			})
		})

		convey.Convey("When environment variables override defaults", func() {
			t.Setenv("LEGEND_COC_API_TOKEN", "secret")
			t.Setenv("LEGEND_POLL_INTERVAL", "2m")
			t.Setenv("LEGEND_FETCH_ATTEMPTS", "5")
			t.Setenv("LEGEND_STORE_DRIVER", "sqlite")
			t.Setenv("LEGEND_NOTIFY_SINKS", "log, kafka")
			t.Setenv("LEGEND_KAFKA_BROKERS", "k1:9092,k2:9092")

			cfg, err := config.Load(noEnvFile, zerolog.Nop())

			convey.Convey("Then the overrides are decoded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.PollInterval, convey.ShouldEqual, 2*time.Minute)
				convey.So(cfg.FetchAttempts, convey.ShouldEqual, 5)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.Sinks(), convey.ShouldResemble, []string{"log", "kafka"})
				convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"k1:9092", "k2:9092"})
			})
		})

		convey.Convey("When a YAML file is given", func() {
			path := filepath.Join(t.TempDir(), "legend.yaml")
			yaml := "coc_api_token: from-file\ntime_zone: UTC\nreset_hour: 5\nserver_port: \"9090\"\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o644), convey.ShouldBeNil)
			t.Setenv("LEGEND_COC_API_TOKEN", "")
			os.Unsetenv("LEGEND_COC_API_TOKEN")
			t.Setenv("LEGEND_SERVER_PORT", "7070")

			cfg, err := config.Load(config.Options{EnvFile: noEnvFile.EnvFile, ConfigFile: path}, zerolog.Nop())

			convey.Convey("Then file values apply and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.CocAPIToken, convey.ShouldEqual, "from-file")
				convey.So(cfg.TimeZone, convey.ShouldEqual, "UTC")
				convey.So(cfg.ResetHour, convey.ShouldEqual, 5)
				convey.So(cfg.ServerPort, convey.ShouldEqual, "7070")
			})
		})

		convey.Convey("When a .env file is present", func() {
			envFile := filepath.Join(t.TempDir(), "test.env")
			convey.So(os.WriteFile(envFile, []byte("LEGEND_COC_API_TOKEN=dotenv\n"), 0o644), convey.ShouldBeNil)
			t.Setenv("LEGEND_COC_API_TOKEN", "")
			os.Unsetenv("LEGEND_COC_API_TOKEN")

			cfg, err := config.Load(config.Options{EnvFile: envFile}, zerolog.Nop())

			convey.Convey("Then its values are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.CocAPIToken, convey.ShouldEqual, "dotenv")
			})
		})

		convey.Convey("When the kafka sink has no brokers", func() {
			t.Setenv("LEGEND_COC_API_TOKEN", "secret")
			t.Setenv("LEGEND_NOTIFY_SINKS", "kafka")
			t.Setenv("LEGEND_KAFKA_BROKERS", "")

			_, err := config.Load(noEnvFile, zerolog.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
