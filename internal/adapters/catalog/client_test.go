package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type staticTokens string

func (s staticTokens) GetOrRefresh(context.Context, time.Time) (string, error) {
	return string(s), nil
}

func TestFollowedArtistIDs(t *testing.T) {
	Convey("Given a catalog with two pages of followed artists", t, func() {
		var srv *httptest.Server
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer user-token" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("bad token"))
				return
			}
			q := r.URL.Query()
			if r.URL.Path != "/me/following" || q.Get("type") != "artist" || q.Get("limit") != "50" {
				http.Error(w, "unexpected request "+r.URL.String(), http.StatusBadRequest)
				return
			}
			if q.Get("after") == "" {
				next := srv.URL + "/me/following?type=artist&limit=50&after=a2"
				fmt.Fprintf(w, `{"artists":{"items":[{"id":"a1"},{"id":"a2"}],"next":%q,"total":3}}`, next)
				return
			}
			_, _ = w.Write([]byte(`{"artists":{"items":[{"id":"a3"},{"id":""}],"next":null,"total":3}}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, nil)

		Convey("When the followed ids are imported", func() {
			ids, err := client.FollowedArtistIDs(context.Background(), "user-token")

			Convey("Then every page is followed in order", func() {
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{"a1", "a2", "a3"})
			})
		})

		Convey("When the token is rejected", func() {
			_, err := client.FollowedArtistIDs(context.Background(), "other")

			Convey("Then an upstream error carries the body", func() {
				So(errors.Is(err, ErrUpstream), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "401")
				So(err.Error(), ShouldContainSubstring, "bad token")
			})
		})

		Convey("When no token is given", func() {
			_, err := client.FollowedArtistIDs(context.Background(), "")
			So(err, ShouldEqual, ErrMissingToken)
		})
	})
}

func TestArtists(t *testing.T) {
	Convey("Given a catalog artists endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/artists" || r.Header.Get("Authorization") != "Bearer app-token" {
				http.Error(w, "unexpected request "+r.URL.String(), http.StatusBadRequest)
				return
			}
			ids := strings.Split(r.URL.Query().Get("ids"), ",")
			if ids[0] == "fail" {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			list := []any{}
			for _, id := range ids {
				if id == "unknown" {
					list = append(list, nil)
					continue
				}
				list = append(list, map[string]any{"id": id, "name": "Artist " + id, "popularity": 10})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"artists": list})
		}))
		defer srv.Close()

		client := NewClient(srv.URL+"/", staticTokens("app-token"))
		ctx := context.Background()

		Convey("When known ids are requested", func() {
			artists, err := client.Artists(ctx, []string{"x", "unknown", "y"})

			Convey("Then metadata comes back in order without the unknown id", func() {
				So(err, ShouldBeNil)
				So(len(artists), ShouldEqual, 2)
				So(artists[0].ID, ShouldEqual, "x")
				So(artists[1].Name, ShouldEqual, "Artist y")
			})
		})

		Convey("When the upstream fails", func() {
			_, err := client.Artists(ctx, []string{"fail"})

			Convey("Then the error is ErrUpstream with the status text", func() {
				So(errors.Is(err, ErrUpstream), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "Bad Gateway")
			})
		})

		Convey("When the id count is out of range", func() {
			_, err := client.Artists(ctx, nil)
			So(errors.Is(err, ErrNoIDs), ShouldBeTrue)

			ids := make([]string, MaxArtistIDs+1)
			for i := range ids {
				ids[i] = fmt.Sprintf("id%d", i)
			}
			_, err = client.Artists(ctx, ids)
			So(errors.Is(err, ErrTooManyIDs), ShouldBeTrue)
		})

		Convey("When no app credentials are configured", func() {
			_, err := NewClient(srv.URL, nil).Artists(ctx, []string{"x"})
			So(errors.Is(err, ErrMissingToken), ShouldBeTrue)
		})
	})
}

func TestClientCredentials(t *testing.T) {
	Convey("Given a token endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "id" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
			if r.Method != http.MethodPost || r.ParseForm() != nil || r.PostForm.Get("grant_type") != "client_credentials" {
				http.Error(w, "unexpected request", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`))
		}))
		defer srv.Close()

		Convey("When valid credentials are used", func() {
			tok, err := ClientCredentials{TokenURL: srv.URL, ClientID: "id", ClientSecret: "secret"}.FetchToken(context.Background())

			Convey("Then the token and lifetime are returned", func() {
				So(err, ShouldBeNil)
				So(tok.AccessToken, ShouldEqual, "app-token")
				So(tok.ExpiresIn, ShouldEqual, time.Hour)
			})
		})

		Convey("When the credentials are rejected", func() {
			_, err := ClientCredentials{TokenURL: srv.URL, ClientID: "id", ClientSecret: "nope"}.FetchToken(context.Background())

			Convey("Then an upstream error is returned", func() {
				So(errors.Is(err, ErrUpstream), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "invalid_client")
			})
		})

		Convey("When wired through a token cache", func() {
			cache := NewTokenCache(ClientCredentials{TokenURL: srv.URL, ClientID: "id", ClientSecret: "secret"}, DefaultSkew)
			tok, err := cache.GetOrRefresh(context.Background(), time.Now())

			Convey("Then the cache serves the fetched token", func() {
				So(err, ShouldBeNil)
				So(tok, ShouldEqual, "app-token")
			})
		})
	})
}
