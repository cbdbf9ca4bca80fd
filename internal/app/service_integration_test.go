package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ranked/internal/adapters/http/api"
	service "github.com/okian/ranked/internal/app"
	"github.com/okian/ranked/internal/config"
	"github.com/okian/ranked/internal/domain/types"
	"github.com/okian/ranked/pkg/logger"
)

func sqliteDSN() string {
	return fmt.Sprintf("file:svc_%d?mode=memory&cache=shared", rand.Int64())
}

func startHTTP(svc *service.Service) *httptest.Server {
	server := api.NewServer(svc, svc)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return httptest.NewServer(server.CORS(mux))
}

func call(ts *httptest.Server, method, path, body string, out any) int {
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	So(err, ShouldBeNil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	So(err, ShouldBeNil)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 {
		So(json.NewDecoder(resp.Body).Decode(out), ShouldBeNil)
	}
	return resp.StatusCode
}

func TestServiceIntegration(t *testing.T) {
	backends := map[string]func(*config.Config){
		"sqlite store with shared sql ledger": func(cfg *config.Config) {
			cfg.Store.Driver = "sqlite"
			cfg.Store.DSN = sqliteDSN()
			cfg.Ledger.Driver = "sql"
		},
		"memory store with standalone sql ledger": func(cfg *config.Config) {
			cfg.Ledger.Driver = "sql"
			cfg.Store.DSN = sqliteDSN()
		},
		"memory store with redis ledger": func(cfg *config.Config) {
			mr := miniredis.RunT(t)
			cfg.Ledger.Driver = "redis"
			cfg.Ledger.RedisAddr = mr.Addr()
		},
	}

	for name, configure := range backends {
		Convey("Given a service built from config with "+name, t, func() {
			ctx := context.Background()
			cfg := config.New(ctx)
			configure(cfg)
			So(cfg.Validate(), ShouldBeNil)

			opts, err := service.FromConfig(ctx, cfg)
			So(err, ShouldBeNil)
			svc := service.New(append(opts, service.WithLogger(logger.Discard()))...)
			So(svc.Start(ctx), ShouldBeNil)
			defer func() { _ = svc.Close() }()

			ts := startHTTP(svc)
			defer ts.Close()

			Convey("When profiles are created and voted on over HTTP", func() {
				for i := 0; i < 4; i++ {
					status := call(ts, http.MethodPost, "/api/profiles", fmt.Sprintf(`{"id":"p%d","name":"Person %d"}`, i, i), nil)
					So(status, ShouldEqual, http.StatusCreated)
				}
				So(call(ts, http.MethodPost, "/api/profiles", `{"id":"p0","name":"Again"}`, nil), ShouldEqual, http.StatusConflict)

				accepted := 0
				for i := 0; i < 20; i++ {
					var pair types.Pair
					So(call(ts, http.MethodGet, "/api/profiles/random", "", &pair), ShouldEqual, http.StatusOK)
					winner := pair.Profiles[i%2].ID

					var res types.VoteResult
					status := call(ts, http.MethodPost, "/api/matches/"+pair.Token+"/vote", `{"winner_id":"`+winner+`"}`, &res)
					So(status, ShouldEqual, http.StatusOK)
					So(res.Winner.Profile.ID, ShouldEqual, winner)
					So(res.Winner.RatingAfter-res.Winner.RatingBefore, ShouldEqual, res.Winner.Delta)
					accepted++

					// replay through the legacy route
					status = call(ts, http.MethodPut, "/api/profiles/"+winner+"/vote", `{"match_token":"`+pair.Token+`"}`, nil)
					So(status, ShouldEqual, http.StatusConflict)
				}

				Convey("Then the leaderboard conserves rating and is totally ordered", func() {
					var entries []types.LeaderboardEntry
					So(call(ts, http.MethodGet, "/api/leaderboard?limit=100", "", &entries), ShouldEqual, http.StatusOK)
					So(entries, ShouldHaveLength, 4)

					var sum, matches int64
					for i, e := range entries {
						sum += e.Rating
						matches += e.MatchCount
						So(e.Rank, ShouldEqual, i+1)
						if i > 0 {
							prev := entries[i-1]
							So(prev.Rating > e.Rating || (prev.Rating == e.Rating && prev.ID < e.ID), ShouldBeTrue)
						}
					}
					So(sum, ShouldEqual, 4*1200)
					So(matches, ShouldEqual, 2*accepted)

					var entry types.LeaderboardEntry
					So(call(ts, http.MethodGet, "/api/profiles/"+entries[0].ID+"/rank", "", &entry), ShouldEqual, http.StatusOK)
					So(entry.Rank, ShouldEqual, 1)
				})

				Convey("And unknown tokens are not found", func() {
					So(call(ts, http.MethodPost, "/api/matches/nope/vote", `{"winner_id":"p0"}`, nil), ShouldEqual, http.StatusNotFound)
				})
			})
		})
	}
}

func TestFromConfig_Errors(t *testing.T) {
	Convey("Given configs naming unusable backends", t, func() {
		ctx := context.Background()

		Convey("An unreachable redis fails fast", func() {
			cfg := config.New(ctx)
			cfg.Ledger.Driver = "redis"
			cfg.Ledger.RedisAddr = "127.0.0.1:1"
			_, err := service.FromConfig(ctx, cfg)
			So(err, ShouldNotBeNil)
		})

		Convey("An unknown rating mode is rejected", func() {
			cfg := config.New(ctx)
			cfg.Rating.Mode = "glicko"
			_, err := service.FromConfig(ctx, cfg)
			So(err, ShouldNotBeNil)
		})
	})
}
