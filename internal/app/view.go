package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/MrWong99/voxwire/internal/sentence"
	"github.com/MrWong99/voxwire/internal/session"
)

// viewWindow caps how many transcript lines one paint emits. Lines arrive
// newest-first, so the cap trims the oldest sentences; the full transcript
// stays readable through [sentence.Assembler.Completed].
const viewWindow = 8

// transcriptView paints the live transcript to a terminal: one session
// state line followed by the assembler's display lines. Every paint
// rewrites the previous block in place with ANSI cursor movement, so the
// pending sentence grows on screen instead of scrolling.
type transcriptView struct {
	out       io.Writer
	assembler *sentence.Assembler

	mu      sync.Mutex
	state   session.State
	painted int
}

func newTranscriptView(out io.Writer, asm *sentence.Assembler) *transcriptView {
	return &transcriptView{out: out, assembler: asm, state: session.StateConnecting}
}

// SetState records the session state and repaints.
func (v *transcriptView) SetState(st session.State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = st
	v.paint()
}

// Refresh repaints after the transcript changed.
func (v *transcriptView) Refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paint()
}

// paint redraws the view block. Callers hold v.mu.
func (v *transcriptView) paint() {
	if v.painted > 0 {
		// Cursor up over the previous block, then clear to screen end.
		fmt.Fprintf(v.out, "\x1b[%dA\x1b[0J", v.painted)
	}

	lines := v.assembler.Lines()
	if len(lines) > viewWindow {
		lines = lines[:viewWindow]
	}

	fmt.Fprintf(v.out, "── %s ──\n", v.state)
	for _, line := range lines {
		fmt.Fprintln(v.out, line)
	}
	v.painted = 1 + len(lines)
}
