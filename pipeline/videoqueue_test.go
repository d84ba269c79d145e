package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/record-herald/state"
)

type fakeProber struct {
	ready  map[string]bool
	err    error
	probes []string
}

func (f *fakeProber) VideoReady(ctx context.Context, replayHash string) (bool, error) {
	f.probes = append(f.probes, replayHash)
	if f.err != nil {
		return false, f.err
	}
	return f.ready[replayHash], nil
}

func (f *fakeProber) VideoURL(replayHash string) string {
	return "https://example.test/get_video/" + replayHash
}

type fakeEditor struct {
	texts    map[state.MessageRef]string
	edits    map[state.MessageRef]string
	fetches  int
	fetchErr error
	editErr  error
}

func newFakeEditor() *fakeEditor {
	return &fakeEditor{texts: map[state.MessageRef]string{}, edits: map[state.MessageRef]string{}}
}

func (f *fakeEditor) Fetch(ref state.MessageRef) (string, error) {
	f.fetches++
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	return f.texts[ref], nil
}

func (f *fakeEditor) Edit(ref state.MessageRef, text string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits[ref] = text
	f.texts[ref] = text
	return nil
}

func queueEntry(player, hash string, value float64, ts int64) state.VideoQueueEntry {
	return state.VideoQueueEntry{
		Key:        state.GroupKey{Pack: "P", Level: "L", Options: state.LevelOptions{DifficultyMult: 1}},
		Player:     player,
		Value:      value,
		Position:   1,
		ReplayHash: hash,
		Timestamp:  ts,
		Messages:   []state.MessageRef{{ChannelID: "c1", MessageID: "m-" + hash}},
	}
}

func TestDrainAttachesLinkAndRemovesHead(t *testing.T) {
	st := state.Default()
	e := queueEntry("A", "h1", 12.345, 100)
	st.VideoQueue = []state.VideoQueueEntry{e}
	editor := newFakeEditor()
	ref := e.Messages[0]
	editor.texts[ref] = "**P - L** **A** achieved **#1** with a score of **12.345**"
	prober := &fakeProber{ready: map[string]bool{"h1": true}}

	DrainVideoQueue(context.Background(), st, prober, editor)

	if len(st.VideoQueue) != 0 {
		t.Fatalf("expected drained queue, got %d entries", len(st.VideoQueue))
	}
	want := "**P - L** **A** achieved **#1** with a score of **[12.345](https://example.test/get_video/h1)**"
	if editor.edits[ref] != want {
		t.Fatalf("edited text: %q", editor.edits[ref])
	}

	// The entry is gone; a further drain does nothing.
	DrainVideoQueue(context.Background(), st, prober, editor)
	if len(prober.probes) != 1 {
		t.Fatalf("drained entry must not be re-probed: %v", prober.probes)
	}
}

func TestDrainSupersededHeadDroppedWithoutEdit(t *testing.T) {
	st := state.Default()
	older := queueEntry("A", "h1", 12.0, 100)
	newer := queueEntry("B", "h2", 13.0, 200)
	st.VideoQueue = []state.VideoQueueEntry{older, newer}
	editor := newFakeEditor()
	editor.texts[newer.Messages[0]] = "**P - L** **B** achieved **#1** with a score of **13**"
	prober := &fakeProber{ready: map[string]bool{"h2": true}}

	DrainVideoQueue(context.Background(), st, prober, editor)

	if len(st.VideoQueue) != 0 {
		t.Fatalf("queue should be drained, got %d", len(st.VideoQueue))
	}
	if _, edited := editor.edits[older.Messages[0]]; edited {
		t.Fatal("superseded entry must never be edited")
	}
	for _, h := range prober.probes {
		if h == "h1" {
			t.Fatal("superseded head must not be probed")
		}
	}
}

func TestDrainProbeFailureLeavesQueueUntouched(t *testing.T) {
	st := state.Default()
	st.VideoQueue = []state.VideoQueueEntry{queueEntry("A", "h1", 12.0, 100), func() state.VideoQueueEntry {
		e := queueEntry("B", "h2", 13.0, 200)
		e.Key.Level = "other"
		return e
	}()}
	before := make([]state.VideoQueueEntry, len(st.VideoQueue))
	copy(before, st.VideoQueue)
	editor := newFakeEditor()
	prober := &fakeProber{err: errors.New("connection reset")}

	DrainVideoQueue(context.Background(), st, prober, editor)

	if len(st.VideoQueue) != len(before) {
		t.Fatalf("probe failure must not change the queue: %d vs %d", len(st.VideoQueue), len(before))
	}
	for i := range before {
		if st.VideoQueue[i].ReplayHash != before[i].ReplayHash {
			t.Fatal("probe failure must not reorder the queue")
		}
	}
	if len(prober.probes) != 1 {
		t.Fatalf("draining must abort at the failed head, probed %v", prober.probes)
	}
	if len(editor.edits) != 0 {
		t.Fatal("no edits on probe failure")
	}
}

func TestDrainHaltsAtNotReadyHead(t *testing.T) {
	st := state.Default()
	head := queueEntry("A", "h1", 12.0, 100)
	later := queueEntry("B", "h2", 13.0, 200)
	later.Key.Level = "other"
	st.VideoQueue = []state.VideoQueueEntry{head, later}
	editor := newFakeEditor()
	// h2 is ready, but the head is not: ordering wins, nothing drains.
	prober := &fakeProber{ready: map[string]bool{"h2": true}}

	DrainVideoQueue(context.Background(), st, prober, editor)

	if len(st.VideoQueue) != 2 {
		t.Fatalf("not-ready head must halt draining, queue %d", len(st.VideoQueue))
	}
	if len(prober.probes) != 1 || prober.probes[0] != "h1" {
		t.Fatalf("later entries must not be probed past a stalled head: %v", prober.probes)
	}
}

func TestDrainFetchFailureSkipsChannelOnly(t *testing.T) {
	st := state.Default()
	e := queueEntry("A", "h1", 12.0, 100)
	bad := state.MessageRef{ChannelID: "gone", MessageID: "m-gone"}
	good := e.Messages[0]
	e.Messages = []state.MessageRef{bad, good}
	st.VideoQueue = []state.VideoQueueEntry{e}

	editor := newFakeEditor()
	editor.texts[good] = "**P - L** **A** achieved **#1** with a score of **12**"
	// Fetch fails only for the missing channel.
	calls := 0
	wrapped := &selectiveEditor{inner: editor, failFor: bad, calls: &calls}
	prober := &fakeProber{ready: map[string]bool{"h1": true}}

	DrainVideoQueue(context.Background(), st, prober, wrapped)

	if len(st.VideoQueue) != 0 {
		t.Fatal("entry should drain despite one dead channel")
	}
	if _, ok := editor.edits[good]; !ok {
		t.Fatal("surviving channel must still be edited")
	}
}

type selectiveEditor struct {
	inner   *fakeEditor
	failFor state.MessageRef
	calls   *int
}

func (s *selectiveEditor) Fetch(ref state.MessageRef) (string, error) {
	*s.calls++
	if ref == s.failFor {
		return "", errors.New("unknown message")
	}
	return s.inner.Fetch(ref)
}

func (s *selectiveEditor) Edit(ref state.MessageRef, text string) error {
	return s.inner.Edit(ref, text)
}
