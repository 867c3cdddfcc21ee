// Package sentence accumulates streamed text fragments into complete
// sentences.
//
// The remote model emits text in arbitrary fragments: a sentence may arrive
// as one message or be split mid-word across several. The [Assembler] folds
// each fragment into a single pending buffer and promotes the buffer to the
// completed list once it ends with sentence-terminal punctuation (".", "!"
// or "?"). Boundary detection is trailing-punctuation only; abbreviations,
// decimals and embedded punctuation are an accepted approximation.
//
// At most one pending sentence is open at a time. Completed sentences are
// append-only and keep arrival order for the assembler's lifetime.
package sentence

import (
	"strings"
	"sync"
)

// terminators are the runes that close a pending sentence when they appear
// at the end of the accumulated buffer.
const terminators = ".!?"

// Assembler folds text fragments into pending and completed sentences. It is
// safe for concurrent use: fragments are pushed from the session's receive
// path while views read snapshots.
type Assembler struct {
	mu        sync.Mutex
	pending   string
	completed []string

	onSentence func(sentence string)
}

// Option is a functional option for [New].
type Option func(*Assembler)

// WithSentenceHook registers fn to be called with each sentence at the
// moment it completes. The hook runs on the pushing goroutine, outside the
// assembler's lock.
func WithSentenceHook(fn func(sentence string)) Option {
	return func(a *Assembler) { a.onSentence = fn }
}

// New creates an empty [Assembler].
func New(opts ...Option) *Assembler {
	a := &Assembler{}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Push folds one fragment into the pending sentence. If the updated buffer
// ends with a terminator the whole buffer becomes one completed sentence
// and pending resets to empty; otherwise the buffer stays open. A fragment
// carrying several terminators still completes as a single sentence; only
// the trailing rune is inspected.
func (a *Assembler) Push(fragment string) {
	a.mu.Lock()
	updated := a.pending + fragment

	var done string
	if endsWithTerminator(updated) {
		a.completed = append(a.completed, updated)
		a.pending = ""
		done = updated
	} else {
		a.pending = updated
	}
	a.mu.Unlock()

	if done != "" && a.onSentence != nil {
		a.onSentence(done)
	}
}

// Pending returns the currently open sentence buffer, possibly empty.
func (a *Assembler) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Completed returns a copy of the completed sentences in arrival order.
func (a *Assembler) Completed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.completed))
	copy(out, a.completed)
	return out
}

// Lines returns the display composition: the pending sentence first, then
// completed sentences newest-first. An empty pending line is suppressed once
// at least one sentence has completed; before that the single empty line
// stands for the not-yet-started transcript.
func (a *Assembler) Lines() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	lines := make([]string, 0, len(a.completed)+1)
	if a.pending != "" || len(a.completed) == 0 {
		lines = append(lines, a.pending)
	}
	for i := len(a.completed) - 1; i >= 0; i-- {
		lines = append(lines, a.completed[i])
	}
	return lines
}

// endsWithTerminator reports whether s ends in sentence-terminal
// punctuation. The terminators are single-byte runes, so a byte check is
// UTF-8 safe.
func endsWithTerminator(s string) bool {
	if s == "" {
		return false
	}
	return strings.ContainsRune(terminators, rune(s[len(s)-1]))
}
