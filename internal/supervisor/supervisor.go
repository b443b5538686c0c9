// Package supervisor owns the pipeline's lifecycle (spec §4.7, §5): it
// starts the Reader and every downstream Pool, installs the two-level
// interrupt handler, joins every stage at shutdown in pipeline order,
// runs the cleanup hook exactly once, and reports the process exit
// code. Generalized from the teacher's cmd/driver/main.go, which wires
// signal-independent long-running goroutines directly in main; here
// that wiring is lifted into a reusable type so cmd/infer/main.go stays
// thin.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/warpcomdev/inferpipe/internal/metrics"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/supervisor/progress"
)

// Stage is the Run/Wait contract every pipeline stage satisfies.
// stage.ReaderPump, stage.Pool[In, Out], and stage.Outputter all
// implement this as-is (spec §4.7: "the list of Pools in pipeline
// order").
type Stage interface {
	Run(ctx context.Context)
	Wait()
}

// Lener reports how many items a queue currently holds: the
// Supervisor's "current-frames accounting structure" (spec §5), reused
// for the progress dashboard.
type Lener interface {
	Len() int
}

// NamedQueue pairs a queue with its display name and configured
// capacity for the progress dashboard.
type NamedQueue struct {
	Name     string
	Queue    Lener
	Capacity int
}

// Alerter raises and clears an operator-visible condition. Satisfied by
// cloud.Alerter; kept as a narrow interface here so supervisor doesn't
// depend on any one backend (spec's sibling "platform" alerting,
// SPEC_FULL.md §4).
type Alerter interface {
	Raise(ctx context.Context, id, name, severity, message string)
	Clear(ctx context.Context, id string)
}

const alertID = "pipeline-stalled"

// Supervisor owns the list of Pools in pipeline order, the list of
// Queues, the exit flag, a progress callback, and a cleanup hook (spec
// §4.7, verbatim).
type Supervisor struct {
	reader  Stage
	pools   []Stage
	queues  []NamedQueue
	cleanup func() error
	log     pipelog.Logger
	progOn  bool
	alerter Alerter

	mu           sync.Mutex
	state        State
	exitCode     int
	hardCancel   context.CancelFunc
	readerCancel context.CancelFunc

	errFlag atomic.Bool
}

// Option configures a Supervisor at construction.
type Option func(*Supervisor)

// WithProgress enables the bubbletea terminal dashboard.
func WithProgress() Option {
	return func(s *Supervisor) { s.progOn = true }
}

// WithAlerter raises a "pipeline stalled" alert when the pipeline
// hard-stops on an unhandled error, and clears it on a clean shutdown.
func WithAlerter(a Alerter) Option {
	return func(s *Supervisor) { s.alerter = a }
}

// New builds a Supervisor. reader is the ReaderPump stage; pools are
// the remaining stages (Encoder, Sender, Receiver, Outputter) in
// pipeline order; queues names every queue between them; cleanup
// closes the backend exactly once after every stage has joined (spec
// §5: "the Supervisor owns it and closes it exactly once on
// shutdown").
func New(reader Stage, pools []Stage, queues []NamedQueue, cleanup func() error, log pipelog.Logger, opts ...Option) *Supervisor {
	if log == nil {
		log = pipelog.Nop()
	}
	if cleanup == nil {
		cleanup = func() error { return nil }
	}
	s := &Supervisor{
		reader:  reader,
		pools:   pools,
		queues:  queues,
		cleanup: cleanup,
		log:     log,
		state:   StateNew,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the Supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnError is wired as the escalation path a stage reaches only when a
// failure is not a per-frame one it can swallow itself (spec §7 keeps
// per-frame errors inside Encoder/Sender/Receiver). Reaching here sets
// the exit flag and triggers a hard stop (spec §5: "An unhandled error
// in any worker sets the exit flag and triggers hard stop; exit code
// 1").
func (s *Supervisor) OnError(err error) {
	s.errFlag.Store(true)
	s.log.Error("unhandled pipeline error, hard-stopping", pipelog.Error(err))
	s.mu.Lock()
	s.state = StateHardStop
	cancel := s.hardCancel
	s.mu.Unlock()
	if s.alerter != nil {
		s.alerter.Raise(context.Background(), alertID, "pipeline error", "critical", err.Error())
	}
	if cancel != nil {
		cancel()
	}
}

// Run starts every stage, installs the two-level interrupt handler,
// blocks until the pipeline has fully drained or hard-stopped, runs
// cleanup, and returns the process exit code (spec §6: 0 success or
// graceful interrupt, 1 unrecoverable error, 2 hard interrupt).
func (s *Supervisor) Run(ctx context.Context) int {
	hardCtx, hardCancel := context.WithCancel(ctx)
	readerCtx, readerCancel := context.WithCancel(hardCtx)
	defer hardCancel()
	defer readerCancel()

	s.mu.Lock()
	s.hardCancel = hardCancel
	s.readerCancel = readerCancel
	s.mu.Unlock()
	s.setState(StateRunning)

	var prog *tea.Program
	progDone := make(chan struct{})
	dashCtx, dashCancel := context.WithCancel(context.Background())
	if s.progOn {
		prog = tea.NewProgram(progress.New())
		go func() {
			defer close(progDone)
			_, _ = prog.Run()
		}()
		go s.runDashboard(dashCtx, prog)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go s.watchSignals(sigCh, readerCancel, hardCancel)

	s.reader.Run(readerCtx)
	for _, p := range s.pools {
		p.Run(hardCtx)
	}

	s.reader.Wait()
	for _, p := range s.pools {
		p.Wait()
	}
	signal.Stop(sigCh)

	if err := s.cleanup(); err != nil {
		s.log.Error("cleanup failed", pipelog.Error(err))
	}

	if s.alerter != nil && !s.errFlag.Load() {
		s.alerter.Clear(context.Background(), alertID)
	}

	if prog != nil {
		dashCancel()
		prog.Quit()
		<-progDone
	}

	return s.finalExitCode()
}

// watchSignals implements the two-level interrupt handling of spec §5:
// a single interrupt stops the Reader and requests a graceful drain; a
// second interrupt within the drain hard-stops the whole pipeline.
func (s *Supervisor) watchSignals(sigCh <-chan os.Signal, readerCancel, hardCancel context.CancelFunc) {
	seen := false
	for range sigCh {
		if !seen {
			seen = true
			s.log.Info("interrupt received, draining pipeline")
			s.setState(StateDrainRequested)
			readerCancel()
			continue
		}
		s.log.Info("second interrupt received, hard stop")
		s.mu.Lock()
		s.exitCode = 2
		s.state = StateHardStop
		s.mu.Unlock()
		hardCancel()
		return
	}
}

func (s *Supervisor) runDashboard(ctx context.Context, prog *tea.Program) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depths := make([]progress.QueueDepth, 0, len(s.queues))
			for _, q := range s.queues {
				depths = append(depths, progress.QueueDepth{Name: q.Name, Depth: q.Queue.Len(), Cap: q.Capacity})
			}
			progress.Send(prog, progress.Snapshot{
				State:       s.State().String(),
				Elapsed:     time.Since(start),
				QueueDepths: depths,
				Dropped:     metrics.TotalDropped(),
			})
		}
	}
}

func (s *Supervisor) finalExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errFlag.Load() {
		return 1
	}
	if s.exitCode != 0 {
		return s.exitCode
	}
	s.state = StateStopped
	return 0
}
