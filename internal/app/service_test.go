package service_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/okian/faceoff/internal/adapters/catalog"
	"github.com/okian/faceoff/internal/adapters/repository"
	service "github.com/okian/faceoff/internal/app"
	"github.com/okian/faceoff/internal/domain/merge"
	"github.com/okian/faceoff/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newStarted(opts ...service.Option) *service.Service {
	n := 0
	base := []service.Option{
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithSessionIDs(func() string {
			n++
			return "session-" + string(rune('0'+n))
		}),
	}
	svc := service.New(append(base, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

type fakeCatalog struct {
	followed []string
	err      error
}

func (f *fakeCatalog) FollowedArtistIDs(_ context.Context, token string) ([]string, error) {
	if token == "" {
		return nil, catalog.ErrMissingToken
	}
	return f.followed, f.err
}

func (f *fakeCatalog) Artists(_ context.Context, ids []string) ([]catalog.Artist, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]catalog.Artist, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Artist{ID: id, Name: "name-" + id})
	}
	return out, nil
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithMaxItems(10), service.WithDedupeSize(100))

		Convey("When it is used before Start", func() {
			_, err := svc.GetSession(context.Background(), "u")

			Convey("Then it reports not started", func() {
				So(err, ShouldEqual, service.ErrNotStarted)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When it is started and stopped", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			stats := svc.GetStats()
			svc.Stop()
			svc.Stop()

			Convey("Then stats reflect the running service", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["maxItems"], ShouldEqual, 10)
				So(stats["sessions"], ShouldEqual, 0)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_StartSession(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newStarted(service.WithMaxItems(5))
		defer svc.Stop()

		Convey("When a session starts with padded and repeated ids", func() {
			v, err := svc.StartSession(ctx, " alice ", service.StartRequest{ItemIDs: []string{"b", " a", "b", "", "c"}})

			Convey("Then ids are cleaned and the first pair is offered", func() {
				So(err, ShouldBeNil)
				So(v.UserID, ShouldEqual, "alice")
				So(v.SessionID, ShouldEqual, "session-1")
				So(v.Status, ShouldEqual, merge.Playing)
				So(v.TotalCount, ShouldEqual, 3)
				So(*v.Pair, ShouldResemble, service.Pair{Left: "b", Right: "a"})
				So(v.Progress, ShouldResemble, merge.Progress{MergedCount: 0, Total: 3, Percent: 0})
				So(v.EstimatedMaxComparisons, ShouldEqual, 6)
				So(v.UpdatedAt, ShouldEqual, fixedNow)
			})

			Convey("And the session can be read back", func() {
				got, err := svc.GetSession(ctx, "alice")
				So(err, ShouldBeNil)
				So(got.SessionID, ShouldEqual, "session-1")
				So(got.State.Sublists, ShouldResemble, [][]string{{"b"}, {"a"}, {"c"}})
			})

			Convey("And restarting replaces it with a new session id", func() {
				again, err := svc.StartSession(ctx, "alice", service.StartRequest{ItemIDs: []string{"x", "y"}})
				So(err, ShouldBeNil)
				So(again.SessionID, ShouldEqual, "session-2")
				So(again.TotalCount, ShouldEqual, 2)
			})
		})

		Convey("When a single item is given", func() {
			v, err := svc.StartSession(ctx, "bob", service.StartRequest{ItemIDs: []string{"only"}})

			Convey("Then the session is finished immediately", func() {
				So(err, ShouldBeNil)
				So(v.Status, ShouldEqual, merge.Finished)
				So(v.Pair, ShouldBeNil)
				r, err := svc.Ranking(ctx, "bob")
				So(err, ShouldBeNil)
				So(r, ShouldResemble, service.Ranking{Finished: true, RankedIDs: []string{"only"}})
			})
		})

		Convey("When the input is unusable", func() {
			_, errEmpty := svc.StartSession(ctx, "bob", service.StartRequest{ItemIDs: []string{" ", ""}})
			_, errUser := svc.StartSession(ctx, "  ", service.StartRequest{ItemIDs: []string{"a"}})
			_, errMany := svc.StartSession(ctx, "bob", service.StartRequest{ItemIDs: []string{"1", "2", "3", "4", "5", "6"}})
			_, errSet := svc.StartSession(ctx, "bob", service.StartRequest{Dataset: "missing"})

			Convey("Then each is rejected with its own error", func() {
				So(errEmpty, ShouldEqual, service.ErrNoItems)
				So(errUser, ShouldEqual, service.ErrInvalidUser)
				So(errors.Is(errMany, service.ErrTooManyItems), ShouldBeTrue)
				So(errors.Is(errSet, service.ErrDatasetNotFound), ShouldBeTrue)
				_, err := svc.GetSession(ctx, "bob")
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
			})
		})

		Convey("When a session starts from a dataset", func() {
			_, err := svc.PutDataset(ctx, "followed", []string{"q", "r", "q"})
			So(err, ShouldBeNil)
			v, err := svc.StartSession(ctx, "carol", service.StartRequest{Dataset: "followed"})

			Convey("Then the dataset items are ranked", func() {
				So(err, ShouldBeNil)
				So(v.TotalCount, ShouldEqual, 2)
				So(*v.Pair, ShouldResemble, service.Pair{Left: "q", Right: "r"})
			})
		})
	})
}

func TestService_Choose(t *testing.T) {
	Convey("Given a session over a, b, c, d", t, func() {
		ctx := context.Background()
		svc := newStarted()
		defer svc.Stop()
		_, err := svc.StartSession(ctx, "u", service.StartRequest{ItemIDs: []string{"a", "b", "c", "d"}})
		So(err, ShouldBeNil)

		Convey("When the four-choice script L,R,L,L is played", func() {
			var v service.View
			for _, c := range []string{"left", "RIGHT", "left", "left"} {
				v, err = svc.Choose(ctx, "u", service.ChoiceRequest{Choice: c})
				So(err, ShouldBeNil)
			}

			Convey("Then the ranking is a, b, d, c", func() {
				So(v.Status, ShouldEqual, merge.Finished)
				So(v.Pair, ShouldBeNil)
				So(v.ComparisonCount, ShouldEqual, 4)
				So(v.Progress.Percent, ShouldEqual, 100)
				r, err := svc.Ranking(ctx, "u")
				So(err, ShouldBeNil)
				So(r.RankedIDs, ShouldResemble, []string{"a", "b", "d", "c"})
			})

			Convey("And further choices are no-ops", func() {
				again, err := svc.Choose(ctx, "u", service.ChoiceRequest{Choice: "right"})
				So(err, ShouldBeNil)
				So(again.ComparisonCount, ShouldEqual, 4)
			})
		})

		Convey("When the same choice id is submitted twice", func() {
			first, err := svc.Choose(ctx, "u", service.ChoiceRequest{Choice: "left", ChoiceID: "c-1"})
			So(err, ShouldBeNil)
			second, err := svc.Choose(ctx, "u", service.ChoiceRequest{Choice: "left", ChoiceID: "c-1"})

			Convey("Then it is applied only once", func() {
				So(err, ShouldBeNil)
				So(first.ComparisonCount, ShouldEqual, 1)
				So(second.ComparisonCount, ShouldEqual, 1)
				So(svc.GetStats()["choiceKeys"], ShouldEqual, int64(1))
			})
		})

		Convey("When a choice targets a replaced session", func() {
			_, err := svc.Choose(ctx, "u", service.ChoiceRequest{Choice: "left", SessionID: "old"})

			Convey("Then it is rejected as stale", func() {
				So(errors.Is(err, service.ErrStaleSession), ShouldBeTrue)
				v, _ := svc.GetSession(ctx, "u")
				So(v.ComparisonCount, ShouldEqual, 0)
			})
		})

		Convey("When the current session id is sent", func() {
			v, err := svc.Choose(ctx, "u", service.ChoiceRequest{Choice: "right", SessionID: "session-1"})

			Convey("Then the choice is applied", func() {
				So(err, ShouldBeNil)
				So(v.ComparisonCount, ShouldEqual, 1)
			})
		})

		Convey("When the choice is not left or right", func() {
			_, err := svc.Choose(ctx, "u", service.ChoiceRequest{Choice: "both"})
			So(err, ShouldEqual, merge.ErrInvalidChoice)
		})

		Convey("When the user has no session", func() {
			_, err := svc.Choose(ctx, "nobody", service.ChoiceRequest{Choice: "left"})
			So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Resume(t *testing.T) {
	Convey("Given a session persisted by one service instance", t, func() {
		ctx := context.Background()
		store := repository.NewMemorySessionStore()
		first := newStarted(service.WithSessionStore(store))
		_, err := first.StartSession(ctx, "u", service.StartRequest{ItemIDs: []string{"a", "b", "c"}})
		So(err, ShouldBeNil)
		_, err = first.Choose(ctx, "u", service.ChoiceRequest{Choice: "right"})
		So(err, ShouldBeNil)
		first.Stop()

		Convey("When another instance loads it", func() {
			second := newStarted(service.WithSessionStore(store))
			defer second.Stop()
			v, err := second.GetSession(ctx, "u")

			Convey("Then play continues where it stopped", func() {
				So(err, ShouldBeNil)
				So(*v.Pair, ShouldResemble, service.Pair{Left: "c", Right: "b"})
				So(v.ComparisonCount, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a stored blob that fails validation", t, func() {
		ctx := context.Background()
		store := repository.NewMemorySessionStore()
		bad := merge.Initialize([]string{"a", "b"})
		bad.CurrentPair = &merge.Pair{0, 7}
		So(store.Save(ctx, repository.Session{UserID: "u", SessionID: "s", State: bad}), ShouldBeNil)
		svc := newStarted(service.WithSessionStore(store))
		defer svc.Stop()

		Convey("Then reads and choices report corruption", func() {
			_, err := svc.GetSession(ctx, "u")
			So(errors.Is(err, service.ErrCorruptSession), ShouldBeTrue)
			_, err = svc.Choose(ctx, "u", service.ChoiceRequest{Choice: "left"})
			So(errors.Is(err, service.ErrCorruptSession), ShouldBeTrue)
		})
	})
}

func TestService_Abandon(t *testing.T) {
	Convey("Given a user with a session", t, func() {
		ctx := context.Background()
		svc := newStarted()
		defer svc.Stop()
		_, err := svc.StartSession(ctx, "u", service.StartRequest{ItemIDs: []string{"a", "b"}})
		So(err, ShouldBeNil)

		Convey("When it is abandoned", func() {
			So(svc.Abandon(ctx, "u"), ShouldBeNil)

			Convey("Then it is gone and a second delete reports not found", func() {
				_, err := svc.GetSession(ctx, "u")
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				So(errors.Is(svc.Abandon(ctx, "u"), service.ErrSessionNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_PaddedUserID(t *testing.T) {
	Convey("Given a session started for a padded user id", t, func() {
		ctx := context.Background()
		svc := newStarted()
		defer svc.Stop()
		started, err := svc.StartSession(ctx, " bob ", service.StartRequest{ItemIDs: []string{"a", "b"}})
		So(err, ShouldBeNil)
		So(started.UserID, ShouldEqual, "bob")

		Convey("When the same padded id is used for every later call", func() {
			got, getErr := svc.GetSession(ctx, " bob ")
			chosen, chooseErr := svc.Choose(ctx, "\tbob", service.ChoiceRequest{Choice: "left"})
			ranking, rankErr := svc.Ranking(ctx, "bob ")

			Convey("Then it resolves to the stored session", func() {
				So(getErr, ShouldBeNil)
				So(got.SessionID, ShouldEqual, started.SessionID)
				So(chooseErr, ShouldBeNil)
				So(chosen.Status, ShouldEqual, merge.Finished)
				So(rankErr, ShouldBeNil)
				So(ranking.RankedIDs, ShouldResemble, []string{"a", "b"})
				So(svc.Abandon(ctx, " bob "), ShouldBeNil)
				_, err := svc.GetSession(ctx, "bob")
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
			})
		})

		Convey("When the id is blank", func() {
			_, getErr := svc.GetSession(ctx, "  ")
			_, chooseErr := svc.Choose(ctx, "", service.ChoiceRequest{Choice: "left"})
			_, rankErr := svc.Ranking(ctx, " ")

			Convey("Then every call rejects it", func() {
				So(getErr, ShouldEqual, service.ErrInvalidUser)
				So(chooseErr, ShouldEqual, service.ErrInvalidUser)
				So(rankErr, ShouldEqual, service.ErrInvalidUser)
				So(svc.Abandon(ctx, ""), ShouldEqual, service.ErrInvalidUser)
			})
		})
	})
}

func TestService_Datasets(t *testing.T) {
	Convey("Given a service with a catalog", t, func() {
		ctx := context.Background()
		cat := &fakeCatalog{followed: []string{"x", "y", "x", "z"}}
		svc := newStarted(service.WithCatalog(cat), service.WithMaxItems(3))
		defer svc.Stop()

		Convey("When followed artists are imported", func() {
			ids, err := svc.ImportDataset(ctx, "mine", "user-token")

			Convey("Then the dataset holds the unique ids in order", func() {
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{"x", "y", "z"})
				stored, err := svc.Dataset(ctx, "mine")
				So(err, ShouldBeNil)
				So(stored, ShouldResemble, []string{"x", "y", "z"})
			})
		})

		Convey("When the catalog fails", func() {
			cat.err = catalog.ErrUpstream
			_, err := svc.ImportDataset(ctx, "mine", "user-token")
			So(errors.Is(err, catalog.ErrUpstream), ShouldBeTrue)
			_, err = svc.Artists(ctx, []string{"x"})
			So(errors.Is(err, catalog.ErrUpstream), ShouldBeTrue)
		})

		Convey("When artist metadata is requested", func() {
			artists, err := svc.Artists(ctx, []string{"x", "x", " y "})
			So(err, ShouldBeNil)
			So(len(artists), ShouldEqual, 2)
			So(artists[1].Name, ShouldEqual, "name-y")
		})

		Convey("When datasets are invalid", func() {
			_, err := svc.PutDataset(ctx, " ", []string{"a"})
			So(err, ShouldEqual, service.ErrInvalidDataset)
			_, err = svc.PutDataset(ctx, "k", nil)
			So(err, ShouldEqual, service.ErrNoItems)
			_, err = svc.PutDataset(ctx, "k", []string{"1", "2", "3", "4"})
			So(errors.Is(err, service.ErrTooManyItems), ShouldBeTrue)
			_, err = svc.Dataset(ctx, "unknown")
			So(errors.Is(err, service.ErrDatasetNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a service without a catalog", t, func() {
		svc := newStarted()
		defer svc.Stop()

		Convey("Then catalog operations are unavailable", func() {
			_, err := svc.ImportDataset(context.Background(), "k", "tok")
			So(err, ShouldEqual, service.ErrCatalogUnavailable)
			_, err = svc.Artists(context.Background(), []string{"a"})
			So(err, ShouldEqual, service.ErrCatalogUnavailable)
		})
	})
}
