package transcript

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/reactor/activity"
	"github.com/martinemde/reactor/agent"
	"github.com/martinemde/reactor/llm"
)

var _ agent.Recorder = (*Store)(nil)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCommitAndLoad(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	initial := []activity.Activity{activity.NewObservation("What is 1 + 2?")}
	turn := []activity.Activity{
		activity.NewThought("add"),
		activity.NewAction("add", `{"left": 1, "right": 2}`),
		activity.NewObservation("3"),
	}
	require.NoError(t, store.Commit(ctx, "s1", 0, initial))
	require.NoError(t, store.Commit(ctx, "s1", 1, turn))
	require.NoError(t, store.Commit(ctx, "s2", 0, []activity.Activity{activity.NewObservation("other")}))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	want := append(initial, turn...)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "activity %d: %v != %v", i, want[i], got[i])
	}
	assert.NoError(t, activity.ValidateSequence(got))

	last, err := store.LastTurn(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, last)

	last, err = store.LastTurn(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, last)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1"}, sessions)

	empty, err := store.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCommitRequiresSession(t *testing.T) {
	store := setupTestStore(t)
	assert.Error(t, store.Commit(context.Background(), "", 0, nil))
	assert.Error(t, store.Fail(context.Background(), "", 1, nil, nil))
}

func TestFailedTurnsAreAuditedSeparately(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	attempts := []activity.Activity{
		activity.NewThought("divide"),
		activity.NewAction("divide", `{"left": 1, "right": 0}`),
		activity.NewObservation("errors:\n  - message: cannot divide by zero"),
	}
	causes := []error{errors.New("action \"divide\" failed: cannot divide by zero"), errors.New("no activities found")}
	require.NoError(t, store.Fail(ctx, "s1", 3, attempts, causes))

	failed, err := store.FailedTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	ft := failed[0]
	assert.NotEmpty(t, ft.ID)
	assert.Equal(t, "s1", ft.SessionID)
	assert.Equal(t, 3, ft.Turn)
	assert.Equal(t, fixed, ft.CreatedAt)
	assert.Equal(t, []string{causes[0].Error(), causes[1].Error()}, ft.Causes)
	require.Len(t, ft.Attempts, 3)
	assert.True(t, attempts[1].Equal(ft.Attempts[1]))

	hist, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, hist, "failed turns never become history")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Commit(context.Background(), "s1", 0, []activity.Activity{activity.NewObservation("hi")}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Input())
}

func TestControllerResumesFromStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	reg, err := agent.NewRegistry(
		agent.NewAction("add", "Add two numbers.", func(_ context.Context, p struct {
			Left  float64 `json:"left"`
			Right float64 `json:"right"`
		}) (float64, error) {
			return p.Left + p.Right, nil
		}),
		agent.NewAction("finish", "Answer.", func(_ context.Context, p struct {
			Answer string `json:"answer"`
		}) (string, error) {
			return p.Answer, nil
		}, agent.Terminal()),
	)
	require.NoError(t, err)

	codec := activity.NewTagCodec()
	encode := func(acts ...activity.Activity) llm.ScriptedResponse {
		return llm.ScriptedResponse{Text: codec.EncodeAll(acts)}
	}

	initial := []activity.Activity{activity.NewObservation("What is 1 + 2?")}
	adapter := llm.NewScriptedAdapter("scripted",
		encode(activity.NewThought("add"), activity.NewAction("add", `{"left": 1, "right": 2}`)),
		llm.ScriptedResponse{Text: "garbage"},
	)
	client := llm.NewClient(llm.WithProvider("scripted", adapter))

	first, err := agent.NewController(client, reg, initial, &agent.Config{MaxRetries: 1}, agent.WithRecorder(store))
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, store.Commit(ctx, first.ID(), 0, initial))

	_, err = first.Invoke(ctx)
	var exhausted *agent.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)

	hist, err := store.Load(ctx, first.ID())
	require.NoError(t, err)
	assert.Len(t, hist, 4)
	failed, err := store.FailedTurns(ctx, first.ID())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Turn)

	last, err := store.LastTurn(ctx, first.ID())
	require.NoError(t, err)
	resumedAdapter := llm.NewScriptedAdapter("scripted",
		encode(activity.NewThought("done"), activity.NewAction("finish", `{"answer": "3"}`)),
	)
	resumed, err := agent.NewController(llm.NewClient(llm.WithProvider("scripted", resumedAdapter)), reg, hist, nil,
		agent.WithRecorder(store), agent.WithSessionID(first.ID()), agent.WithTurnOffset(last))
	require.NoError(t, err)
	defer resumed.Close()

	result, err := resumed.Invoke(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3", result)

	hist, err = store.Load(ctx, first.ID())
	require.NoError(t, err)
	assert.Len(t, hist, 7)
	last, err = store.LastTurn(ctx, first.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, last)
}
