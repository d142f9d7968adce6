// Package stream owns the lexing and dispatch state for one streaming edit
// session: it turns arriving chunks into FileChanges and routes structural
// changes into the async apply queue.
package stream

import (
	"strings"

	"codestream/internal/change"
	"codestream/internal/fence"
)

// queueCapacity bounds the async queue. One message rarely carries more than
// a handful of blocks; the drain loop keeps up long before this fills.
const queueCapacity = 128

// Processor 把到达的文本分片驱动为逐行状态机。
// 同一时刻最多有一个 FileChange 处于 open（正文累积中）状态。
// Processor drives arriving text fragments through a per-line state machine.
// At most one FileChange is open (still accumulating body text) at any time.
//
// Feed and Finish must be called from a single goroutine, in arrival order:
// the lexer's line accumulator is inherently sequential. The queue channel is
// consumed elsewhere.
type Processor struct {
	mode  change.EditMode
	lexer fence.LineLexer

	open    *change.FileChange
	pending []*change.FileChange
	queue   chan *change.FileChange

	haveValidComplete bool
	finished          bool
}

func New(mode change.EditMode) *Processor {
	return &Processor{
		mode:  mode,
		queue: make(chan *change.FileChange, queueCapacity),
	}
}

// Feed consumes one stream chunk. Chunks may be split mid-line or mid-marker;
// no fence decision is made until a full line is available.
func (p *Processor) Feed(chunk string) {
	for _, line := range p.lexer.Feed(chunk) {
		p.handleLine(strings.TrimSuffix(line, "\r"))
	}
}

func (p *Processor) handleLine(line string) {
	if p.open == nil {
		if fence.IsOpenCandidate(line) {
			p.open = fence.Interpret(fence.Tag(line), p.mode, p.haveValidComplete)
		}
		// Text outside fences is not part of the edit protocol; discard.
		return
	}
	if fence.IsCloseMarker(line) {
		p.closeOpen()
		return
	}
	p.open.AppendBodyLine(line)
}

// closeOpen finalizes the open change on its closing fence. Malformed changes
// are recorded in pending (they appear in the summary) but never queued.
func (p *Processor) closeOpen() {
	ch := p.open
	p.open = nil
	p.pending = append(p.pending, ch)
	if !ch.Valid() {
		return
	}
	switch ch.Mode {
	case change.ModeCompleteFile:
		p.haveValidComplete = true
	case change.ModeAstPath:
		// Structural changes apply one at a time in arrival order: each
		// resolution must see the line shifts of the previous apply.
		p.queue <- ch
	}
}

// Finish 流结束：冲刷词法器残留，处理未闭合的代码块，并关闭队列。
// 队列关闭即向消费端宣告“不会再有结构化变更到达”。
// Finish handles end of stream: it flushes the lexer remainder, settles an
// unterminated open block, and closes the queue. Queue closure tells the
// consumer no more structural changes will arrive.
func (p *Processor) Finish() {
	if p.finished {
		return
	}
	p.finished = true

	if line, ok := p.lexer.Flush(); ok {
		p.handleLine(strings.TrimSuffix(line, "\r"))
	}

	if ch := p.open; ch != nil {
		p.open = nil
		switch {
		case !ch.Valid():
			// Already malformed; keep the original diagnostic.
			p.pending = append(p.pending, ch)
		case ch.Body.Len() > 0:
			// Surfacing a diagnostic beats silently losing data.
			ch.Fail("unterminated code block")
			p.pending = append(p.pending, ch)
		default:
			// Empty and unterminated: discarded as incomplete.
		}
	}

	close(p.queue)
}

// Queue is the async apply queue of valid structural changes.
func (p *Processor) Queue() <-chan *change.FileChange {
	return p.queue
}

// Pending returns every recorded change, all modes, in arrival order.
func (p *Processor) Pending() []*change.FileChange {
	return p.pending
}

// ChangeCount returns the number of recorded changes.
func (p *Processor) ChangeCount() int {
	return len(p.pending)
}

// ValidComplete returns the session's single valid complete-file change, if any.
func (p *Processor) ValidComplete() *change.FileChange {
	for _, ch := range p.pending {
		if ch.Mode == change.ModeCompleteFile && ch.Valid() {
			return ch
		}
	}
	return nil
}
