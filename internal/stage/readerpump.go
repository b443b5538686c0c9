package stage

import (
	"context"
	"errors"

	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/queue"
	"github.com/warpcomdev/inferpipe/internal/reader"

	"github.com/warpcomdev/inferpipe/internal/frame"
)

// ReaderPump adapts a reader.Reader into the same Run/Wait shape as
// every other Pool, so the Supervisor can start and join it
// identically (spec §4.7: "the list of Pools in pipeline order" starts
// with the Reader). It is the one stage the Supervisor stops on the
// first interrupt, independent of every downstream stage (spec §5).
type ReaderPump struct {
	r    reader.Reader
	out  queue.Queue[*frame.Frame]
	log  pipelog.Logger
	done chan struct{}
}

// NewReaderPump builds a ReaderPump over an already-selected Reader.
func NewReaderPump(r reader.Reader, out queue.Queue[*frame.Frame], log pipelog.Logger) *ReaderPump {
	if log == nil {
		log = pipelog.Nop()
	}
	return &ReaderPump{r: r, out: out, log: log, done: make(chan struct{})}
}

// Run pulls frames from the Reader until it is exhausted, ctx is
// cancelled, or a non-EOF error occurs, then closes out.
func (p *ReaderPump) Run(ctx context.Context) {
	go func() {
		defer close(p.done)
		defer p.out.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			f, err := p.r.Next(ctx)
			if err != nil {
				if !errors.Is(err, reader.ErrDone) {
					p.log.Error("reader failed", pipelog.Error(err))
				}
				return
			}
			if err := p.out.Put(ctx, f); err != nil {
				return
			}
		}
	}()
}

// Wait blocks until Run has returned and releases the Reader's
// underlying resource.
func (p *ReaderPump) Wait() {
	<-p.done
	if err := p.r.Close(); err != nil {
		p.log.Warn("reader close failed", pipelog.Error(err))
	}
}
