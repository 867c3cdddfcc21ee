package sentence_test

import (
	"reflect"
	"testing"

	"github.com/MrWong99/voxwire/internal/sentence"
)

func TestPush_AccumulatesWithoutTerminator(t *testing.T) {
	t.Parallel()

	a := sentence.New()
	a.Push("Hello")
	a.Push(" world")

	if got := a.Pending(); got != "Hello world" {
		t.Errorf("pending = %q, want %q", got, "Hello world")
	}
	if got := a.Completed(); len(got) != 0 {
		t.Errorf("completed = %v, want empty", got)
	}
}

func TestPush_TerminatorCompletesSentence(t *testing.T) {
	t.Parallel()

	a := sentence.New()
	a.Push("Hello ")
	a.Push("world.")

	if got := a.Pending(); got != "" {
		t.Errorf("pending = %q, want empty", got)
	}
	want := []string{"Hello world."}
	if got := a.Completed(); !reflect.DeepEqual(got, want) {
		t.Errorf("completed = %v, want %v", got, want)
	}
}

func TestPush_AllTerminatorsEquivalent(t *testing.T) {
	t.Parallel()

	for _, term := range []string{".", "!", "?"} {
		t.Run(term, func(t *testing.T) {
			t.Parallel()

			a := sentence.New()
			a.Push("Are we live")
			a.Push(term)

			if got := a.Pending(); got != "" {
				t.Errorf("pending = %q, want empty", got)
			}
			want := []string{"Are we live" + term}
			if got := a.Completed(); !reflect.DeepEqual(got, want) {
				t.Errorf("completed = %v, want %v", got, want)
			}
		})
	}
}

func TestPush_KeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	a := sentence.New()
	a.Push("First.")
	a.Push("Second!")
	a.Push("Third?")

	want := []string{"First.", "Second!", "Third?"}
	if got := a.Completed(); !reflect.DeepEqual(got, want) {
		t.Errorf("completed = %v, want %v", got, want)
	}
}

func TestPush_EmbeddedTerminatorDoesNotSplit(t *testing.T) {
	t.Parallel()

	// Only the trailing rune is inspected, so a fragment carrying an
	// interior full stop completes as one sentence.
	a := sentence.New()
	a.Push("Hi. How are you")
	if got := len(a.Completed()); got != 0 {
		t.Fatalf("completed %d sentences before terminator", got)
	}

	a.Push("?")
	want := []string{"Hi. How are you?"}
	if got := a.Completed(); !reflect.DeepEqual(got, want) {
		t.Errorf("completed = %v, want %v", got, want)
	}
}

func TestPush_EmptyFragmentIsNoOp(t *testing.T) {
	t.Parallel()

	a := sentence.New()
	a.Push("")
	if got := a.Pending(); got != "" {
		t.Errorf("pending = %q, want empty", got)
	}
	if got := len(a.Completed()); got != 0 {
		t.Errorf("completed = %d sentences, want 0", got)
	}

	a.Push("Mid")
	a.Push("")
	if got := a.Pending(); got != "Mid" {
		t.Errorf("pending = %q, want %q", got, "Mid")
	}
}

func TestSentenceHook_FiresOnCompletionOnly(t *testing.T) {
	t.Parallel()

	var fired []string
	a := sentence.New(sentence.WithSentenceHook(func(s string) {
		fired = append(fired, s)
	}))

	a.Push("Hi")
	if len(fired) != 0 {
		t.Fatalf("hook fired on open sentence: %v", fired)
	}

	a.Push(" there.")
	want := []string{"Hi there."}
	if !reflect.DeepEqual(fired, want) {
		t.Errorf("hook calls = %v, want %v", fired, want)
	}
}

func TestLines_NewestFirstWithPendingOnTop(t *testing.T) {
	t.Parallel()

	a := sentence.New()
	a.Push("One.")
	a.Push("Two.")
	a.Push("And thr")

	want := []string{"And thr", "Two.", "One."}
	if got := a.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
}

func TestLines_SuppressesEmptyPendingAfterFirstSentence(t *testing.T) {
	t.Parallel()

	a := sentence.New()

	// Before anything completes the single empty line is the transcript.
	if got := a.Lines(); !reflect.DeepEqual(got, []string{""}) {
		t.Errorf("lines = %v, want single empty line", got)
	}

	a.Push("Done.")
	want := []string{"Done."}
	if got := a.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
}

func TestEndToEnd_FragmentedGreeting(t *testing.T) {
	t.Parallel()

	a := sentence.New()
	a.Push("Hi")
	a.Push(" there.")

	if got := a.Pending(); got != "" {
		t.Errorf("pending = %q, want empty", got)
	}
	want := []string{"Hi there."}
	if got := a.Completed(); !reflect.DeepEqual(got, want) {
		t.Errorf("completed = %v, want %v", got, want)
	}
}
