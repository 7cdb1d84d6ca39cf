package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"legend-tracker/internal/domain"
	"legend-tracker/internal/metrics"
	"legend-tracker/internal/repository"
	"legend-tracker/internal/server"
	"legend-tracker/internal/service"

	"github.com/rs/zerolog"
	"github.com/smartystreets/goconvey/convey"
)

func newTestServer(t *testing.T) (*httptest.Server, repository.Store) {
	t.Helper()
	store, err := repository.NewFileStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	srv := server.NewTrackerServer(service.NewPlayerService(store, zerolog.Nop()), metrics.New(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAdminAPI(t *testing.T) {
	convey.Convey("Given the admin API", t, func() {
		ts, store := newTestServer(t)

		convey.Convey("When health is checked", func() {
			resp := do(t, http.MethodGet, ts.URL+"/healthz", "")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			convey.So(resp.Header.Get("X-Request-ID"), convey.ShouldNotBeEmpty)
		})

		convey.Convey("When metrics are scraped", func() {
			resp := do(t, http.MethodGet, ts.URL+"/metrics", "")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("When a player is added", func() {
			resp := do(t, http.MethodPost, ts.URL+"/api/players", `{"name":"alice","tag":"#abc"}`)

			convey.Convey("Then it is created and listed", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)

				list := do(t, http.MethodGet, ts.URL+"/api/players", "")
				var players []service.PlayerSummary
				convey.So(json.NewDecoder(list.Body).Decode(&players), convey.ShouldBeNil)
				convey.So(players, convey.ShouldHaveLength, 1)
				convey.So(players[0].Tag, convey.ShouldEqual, "ABC")
			})

			convey.Convey("And added twice", func() {
				again := do(t, http.MethodPost, ts.URL+"/api/players", `{"name":"alice","tag":"ABC"}`)
				convey.So(again.StatusCode, convey.ShouldEqual, http.StatusConflict)
			})

			convey.Convey("And its logs are read", func() {
				convey.So(store.Update(context.Background(), func(st *domain.State) error {
					st.Registry.Players["ABC"].LegendLog["2025-07-02"] = &domain.DayLog{Attack: []int{40}, Defense: []int{}}
					return nil
				}), convey.ShouldBeNil)

				legend := do(t, http.MethodGet, ts.URL+"/api/players/%23ABC/legend", "")
				convey.So(legend.StatusCode, convey.ShouldEqual, http.StatusOK)
				var days map[string]domain.DayLog
				convey.So(json.NewDecoder(legend.Body).Decode(&days), convey.ShouldBeNil)
				convey.So(days["2025-07-02"].Attack, convey.ShouldResemble, []int{40})

				season := do(t, http.MethodGet, ts.URL+"/api/players/ABC/season", "")
				convey.So(season.StatusCode, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("And removed", func() {
				del := do(t, http.MethodDelete, ts.URL+"/api/players/abc", "")
				convey.So(del.StatusCode, convey.ShouldEqual, http.StatusNoContent)

				missing := do(t, http.MethodGet, ts.URL+"/api/players/ABC/legend", "")
				convey.So(missing.StatusCode, convey.ShouldEqual, http.StatusNotFound)
			})
		})

		convey.Convey("When the body is not JSON", func() {
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/players", strings.NewReader(`nope`))
			convey.So(err, convey.ShouldBeNil)
			req.Header.Set("X-Request-ID", "req-42")
			resp, err := http.DefaultClient.Do(req)
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then the error carries the request id", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
				var body map[string]string
				convey.So(json.NewDecoder(resp.Body).Decode(&body), convey.ShouldBeNil)
				convey.So(body["request_id"], convey.ShouldEqual, "req-42")
			})
		})

		convey.Convey("When the tag is invalid", func() {
			resp := do(t, http.MethodPost, ts.URL+"/api/players", `{"name":"x","tag":"a-b"}`)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}
