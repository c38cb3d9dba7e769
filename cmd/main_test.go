package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/teambalance/internal/config"
	"github.com/okian/teambalance/pkg/logger"
	"github.com/okian/teambalance/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			t.Setenv("TEAMBAL_ADDR", ":8080")
			t.Setenv("TEAMBAL_QUEUE_SIZE", "50")
			t.Setenv("TEAMBAL_WORKER_COUNT", "2")

			convey.Convey("Then it is loaded over the defaults", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 50)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the environment holds an invalid value", func() {
			t.Setenv("TEAMBAL_ADDR", "")

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the service is built from configuration", func() {
			cfg := config.New()
			cfg.WorkerCount = 2
			cfg.QueueSize = 10
			cfg.RecheckIntervalS = 0
			cfg.DataDir = t.TempDir()
			cfg.RatingsLatencyMinMS, cfg.RatingsLatencyMaxMS = 0, 0

			ctx := context.Background()
			svc := newService(cfg, logger.Get())
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			mux := newMux(ctx, svc)

			convey.Convey("Then the API and docs are served", func() {
				for _, path := range []string{"/stats", "/healthz", "/openapi.yaml", "/api-docs"} {
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, httptest.NewRequest("GET", path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("Then the stats reflect the configuration", func() {
				stats, err := svc.GetStats(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.Workers, convey.ShouldEqual, 2)
				convey.So(stats.QueueCapacity, convey.ShouldEqual, 10)
			})

			convey.Convey("Then guilds are written to the data dir", func() {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest("PUT", "/guilds/sunday",
					strings.NewReader(`{"name":"Sunday"}`)))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				entries, err := os.ReadDir(cfg.DataDir)
				convey.So(err, convey.ShouldBeNil)
				convey.So(entries, convey.ShouldNotBeEmpty)
			})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a free port", t, func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)
		addr := ln.Addr().String()
		convey.So(ln.Close(), convey.ShouldBeNil)

		cfg := config.New()
		cfg.Addr = addr
		cfg.WorkerCount = 1
		cfg.RecheckIntervalS = 0

		convey.Convey("When run is started and then cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg, logger.Get()) }()

			var resp *http.Response
			for i := 0; i < 50; i++ {
				resp, err = http.Get("http://" + addr + "/stats")
				if err == nil {
					break
				}
				time.Sleep(20 * time.Millisecond)
			}
			convey.So(err, convey.ShouldBeNil)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			_ = resp.Body.Close()

			cancel()

			convey.Convey("Then it shuts down cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the address is taken", func() {
			busy, err := net.Listen("tcp", addr)
			convey.So(err, convey.ShouldBeNil)
			defer busy.Close()

			convey.Convey("Then run reports the listen error", func() {
				err := run(context.Background(), cfg, logger.Get())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestInitMetrics(t *testing.T) {
	convey.Convey("Given metrics settings in the configuration", t, func() {
		cfg := config.New()
		cfg.MetricsNamespace = "league"
		cfg.MetricsPrefix = "sunday"
		cfg.MetricsLabels = map[string]string{"env": "test"}
		defer initMetrics(config.New())

		convey.Convey("When metrics are initialised from it", func() {
			initMetrics(cfg)
			metrics.RecordCacheHit()

			convey.Convey("Then the served registry uses those names and labels", func() {
				families, err := metrics.GetRegistry().Gather()
				convey.So(err, convey.ShouldBeNil)

				var env string
				for _, f := range families {
					if f.GetName() == "league_balancer_sunday_result_cache_hits_total" {
						env = f.GetMetric()[0].GetLabel()[0].GetValue()
					}
				}
				convey.So(env, convey.ShouldEqual, "test")

				w := httptest.NewRecorder()
				newMux(context.Background(), newService(cfg, logger.Get())).
					ServeHTTP(w, httptest.NewRequest("GET", "/healthz", http.NoBody))
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "league_balancer_sunday_")
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loop returns when its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
