package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// each test runs against both durable backends
func withStores(t *testing.T, fn func(t *testing.T, newStore func(t *testing.T) Store)) {
	t.Helper()
	backends := map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			fs, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return fs
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(context.Background(), ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) { fn(t, newStore) })
	}
}

func openRegistry(t *testing.T, store Store) *Registry {
	t.Helper()
	r, err := Open(context.Background(), store, nil)
	require.NoError(t, err)
	return r
}

func testDocument(artifactID string) *model.Document {
	title := "T"
	raw, _ := json.Marshal(model.TextContent{Text: "hello"})
	return &model.Document{
		SchemaVersion: model.SchemaVersionV1,
		ArtifactID:    artifactID,
		Deck:          model.DeckMeta{Title: "Deck " + artifactID, Language: "ko"},
		Slides: []model.Slide{
			{SlideID: "s1", Type: model.SlideTypeTitle, Title: &title,
				Elements: []model.Element{{ElementID: "s1_e1", Kind: model.ElementText, Content: raw}}},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestRunRoundTrip(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		store := newStore(t)
		reg := openRegistry(t, store)
		ctx := context.Background()

		run := model.NewRun(model.RunRequest{Prompt: "p", Language: "ko"})
		require.NoError(t, reg.CreateRun(ctx, run))

		got, err := reg.GetRun(run.RunID)
		require.NoError(t, err)
		assert.Equal(t, run.RunID, got.RunID)
		assert.Equal(t, model.RunStatusCreated, got.Status)

		// A fresh registry over the same store sees the same state.
		if store.Name() == "file" {
			reg2 := openRegistry(t, store)
			got2, err := reg2.GetRun(run.RunID)
			require.NoError(t, err)
			assert.Equal(t, run.RunID, got2.RunID)
			assert.Equal(t, run.Request.Prompt, got2.Request.Prompt)
		}
	})
}

func TestGetRunUnknown(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		_, err := reg.GetRun("nope")
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestUpdateRunTransition(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		ctx := context.Background()

		run := model.NewRun(model.RunRequest{Prompt: "p"})
		require.NoError(t, reg.CreateRun(ctx, run))

		updated, err := reg.UpdateRun(ctx, run.RunID, func(r *model.Run) error {
			return r.Transition(model.RunStatusPlanning)
		})
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusPlanning, updated.Status)

		// Illegal transition persists nothing.
		_, err = reg.UpdateRun(ctx, run.RunID, func(r *model.Run) error {
			return r.Transition(model.RunStatusCompleted)
		})
		require.ErrorIs(t, err, model.ErrInvalidTransition)

		got, err := reg.GetRun(run.RunID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusPlanning, got.Status)
	})
}

func TestListRunsNewestFirst(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		ctx := context.Background()

		base := time.Now().UTC()
		var ids []string
		for i := 0; i < 5; i++ {
			run := model.NewRun(model.RunRequest{Prompt: fmt.Sprintf("p%d", i)})
			run.CreatedAt = base.Add(time.Duration(i) * time.Second)
			require.NoError(t, reg.CreateRun(ctx, run))
			ids = append(ids, run.RunID)
		}

		page, total := reg.ListRuns(2, 0)
		assert.Equal(t, 5, total)
		require.Len(t, page, 2)
		assert.Equal(t, ids[4], page[0].RunID)
		assert.Equal(t, ids[3], page[1].RunID)

		page, _ = reg.ListRuns(2, 4)
		require.Len(t, page, 1)
		assert.Equal(t, ids[0], page[0].RunID)

		page, _ = reg.ListRuns(2, 99)
		assert.Empty(t, page)
	})
}

func TestDeleteRunCascades(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		ctx := context.Background()

		run := model.NewRun(model.RunRequest{Prompt: "p"})
		require.NoError(t, reg.CreateRun(ctx, run))
		doc := testDocument(run.RunID)
		require.NoError(t, reg.SaveDocument(ctx, doc))
		_, err := reg.UpdateRun(ctx, run.RunID, func(r *model.Run) error {
			if err := r.Transition(model.RunStatusPlanning); err != nil {
				return err
			}
			if err := r.Transition(model.RunStatusGenerating); err != nil {
				return err
			}
			return r.Complete(doc.ArtifactID)
		})
		require.NoError(t, err)

		require.NoError(t, reg.DeleteRun(ctx, run.RunID))

		_, err = reg.GetRun(run.RunID)
		require.ErrorIs(t, err, model.ErrNotFound)
		_, err = reg.GetDocument(doc.ArtifactID)
		require.ErrorIs(t, err, model.ErrNotFound)

		require.ErrorIs(t, reg.DeleteRun(ctx, run.RunID), model.ErrNotFound)
	})
}

func TestDocumentRoundTripAndIsolation(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		ctx := context.Background()

		doc := testDocument("a1")
		require.NoError(t, reg.SaveDocument(ctx, doc))

		got, err := reg.GetDocument("a1")
		require.NoError(t, err)
		assert.Equal(t, doc.Deck.Title, got.Deck.Title)
		require.Len(t, got.Slides, 1)

		// Mutating the returned copy must not leak into the cache.
		got.Slides[0].SlideID = "hacked"
		again, err := reg.GetDocument("a1")
		require.NoError(t, err)
		assert.Equal(t, "s1", again.Slides[0].SlideID)
	})
}

func TestUpdateSlide(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		ctx := context.Background()

		require.NoError(t, reg.SaveDocument(ctx, testDocument("a1")))

		raw, _ := json.Marshal(model.TextContent{Text: "edited"})
		slide := &model.Slide{
			SlideID:  "s1",
			Type:     model.SlideTypeContent,
			Elements: []model.Element{{ElementID: "s1_e1", Kind: model.ElementText, Content: raw}},
		}

		updated, err := reg.UpdateSlide(ctx, "a1", 0, slide)
		require.NoError(t, err)
		assert.Equal(t, model.SlideTypeContent, updated.Slides[0].Type)

		_, err = reg.UpdateSlide(ctx, "a1", 5, slide)
		require.Error(t, err)
		var verr *model.ValidationError
		assert.ErrorAs(t, err, &verr)

		_, err = reg.UpdateSlide(ctx, "missing", 0, slide)
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestListDocumentsByTitle(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		ctx := context.Background()

		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, reg.SaveDocument(ctx, testDocument(id)))
		}

		metas, total := reg.ListDocuments(0, 0)
		assert.Equal(t, 3, total)
		require.Len(t, metas, 3)
		assert.Equal(t, "Deck a", metas[0].Title)
		assert.Equal(t, "Deck c", metas[2].Title)
	})
}

// gatedStore blocks SaveRun for one chosen run id until released, standing
// in for a slow durable write.
type gatedStore struct {
	Store
	gateID  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run.RunID == g.gateID {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.Store.SaveRun(ctx, run)
}

func TestUpdateRunUnrelatedIDsDoNotContend(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	gated := &gatedStore{
		Store:   fs,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	reg := openRegistry(t, gated)
	ctx := context.Background()

	slow := model.NewRun(model.RunRequest{Prompt: "slow"})
	fast := model.NewRun(model.RunRequest{Prompt: "fast"})
	require.NoError(t, reg.CreateRun(ctx, slow))
	require.NoError(t, reg.CreateRun(ctx, fast))
	gated.gateID = slow.RunID

	slowDone := make(chan error, 1)
	go func() {
		_, err := reg.UpdateRun(ctx, slow.RunID, func(r *model.Run) error {
			return r.Transition(model.RunStatusPlanning)
		})
		slowDone <- err
	}()
	<-gated.entered // slow run is now parked inside its store write

	// The other run's update must land while the slow write is in flight.
	fastDone := make(chan error, 1)
	go func() {
		_, err := reg.UpdateRun(ctx, fast.RunID, func(r *model.Run) error {
			return r.Transition(model.RunStatusPlanning)
		})
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("update of an unrelated run blocked behind another run's store write")
	}

	close(gated.release)
	require.NoError(t, <-slowDone)

	got, err := reg.GetRun(slow.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPlanning, got.Status)
}

func TestUpdateElement(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		ctx := context.Background()

		require.NoError(t, reg.SaveDocument(ctx, testDocument("a1")))

		raw, _ := json.Marshal(model.TextContent{Text: "patched"})
		el := &model.Element{ElementID: "s1_e1", Kind: model.ElementText, Content: raw}

		updated, err := reg.UpdateElement(ctx, "a1", 0, "s1_e1", el)
		require.NoError(t, err)
		require.Len(t, updated.Slides[0].Elements, 1)
		content, err := updated.Slides[0].Elements[0].DecodeContent()
		require.NoError(t, err)
		assert.Equal(t, "patched", content.(model.TextContent).Text)

		_, err = reg.UpdateElement(ctx, "a1", 0, "ghost", el)
		require.ErrorIs(t, err, model.ErrNotFound)

		_, err = reg.UpdateElement(ctx, "a1", 7, el.ElementID, el)
		var verr *model.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestActiveRuns(t *testing.T) {
	withStores(t, func(t *testing.T, newStore func(t *testing.T) Store) {
		reg := openRegistry(t, newStore(t))
		ctx := context.Background()

		active := model.NewRun(model.RunRequest{Prompt: "p"})
		require.NoError(t, reg.CreateRun(ctx, active))

		done := model.NewRun(model.RunRequest{Prompt: "p"})
		require.NoError(t, reg.CreateRun(ctx, done))
		_, err := reg.UpdateRun(ctx, done.RunID, func(r *model.Run) error {
			return r.Transition(model.RunStatusCancelled)
		})
		require.NoError(t, err)

		assert.Equal(t, 1, reg.ActiveRuns())
	})
}
