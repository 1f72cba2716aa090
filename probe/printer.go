package probe

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/qntx/otprobe"
)

// Printer is a Handler that writes every event to an output stream.
//
// Notices are colorized when enabled; message payloads are always written
// verbatim, each followed by a blank line.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	opened *color.Color
	closed *color.Color
}

var _ otprobe.Handler = (*Printer)(nil)

// NewPrinter creates a Printer writing to w. Colors are off when colored is
// false or w is not a terminal; otherwise color.NoColor decides.
func NewPrinter(w io.Writer, colored bool) *Printer {
	p := &Printer{
		w:      w,
		opened: color.New(color.FgHiGreen, color.Bold),
		closed: color.New(color.FgHiYellow, color.Bold),
	}

	if !colored || !isTerminal(w) {
		p.opened.DisableColor()
		p.closed.DisableColor()
	}

	return p
}

// OnOpened prints the handshake notice.
func (p *Printer) OnOpened() {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = p.opened.Fprintln(p.w, "Opened up")
}

// OnClosed prints the close code and reason.
func (p *Printer) OnClosed(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = p.closed.Fprintln(p.w, "Closed down", code, reason)
}

// OnMessage prints the payload and a blank line.
func (p *Printer) OnMessage(payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprintf(p.w, "%s\n\n", payload)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
