// Command infer runs the streaming inference pipeline of spec §2-§7:
// Reader -> Encoder -> Sender(N) -> Receiver -> Outputter, wired
// together by a Supervisor that owns their lifecycle. Generalized from
// the teacher's cmd/driver/main.go (zap logger bring-up, Prometheus
// /metrics listener, blocking run-until-signalled shape) onto the
// inference domain instead of the camera/ASI SDK one.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/backend/cloud"
	"github.com/warpcomdev/inferpipe/internal/backend/file"
	"github.com/warpcomdev/inferpipe/internal/backend/noop"
	"github.com/warpcomdev/inferpipe/internal/backend/rpc"
	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/postprocess"
	"github.com/warpcomdev/inferpipe/internal/queue"
	"github.com/warpcomdev/inferpipe/internal/reader"
	"github.com/warpcomdev/inferpipe/internal/sink"
	"github.com/warpcomdev/inferpipe/internal/stage"
	"github.com/warpcomdev/inferpipe/internal/supervisor"
)

// queueCapacity is the default bounded-queue capacity of spec §5
// ("every queue has a bounded capacity, default ~50").
const queueCapacity = 50

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log, err := pipelog.New(os.Getenv("LOG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		return 1
	}
	defer pipelog.Sync(log)

	if cfg.ServiceAction != "" {
		return runService(cfg, log)
	}

	if metricsAddr := os.Getenv("METRICS_ADDR"); metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics listener failed", pipelog.Error(err))
			}
		}()
	}

	sup, err := build(cfg, log)
	if err != nil {
		log.Error("pipeline setup failed", pipelog.Error(err))
		return 1
	}

	code := sup.Run(context.Background())
	log.Info("pipeline exited", pipelog.Int("code", code))
	return code
}

// parseFlags wires the standard library flag package onto a Config,
// matching spec §6's command surface exactly (no cobra/pflag: the
// teacher doesn't pull one either, and CLI parsing is explicitly out
// of the core's scope per the Non-goals).
func parseFlags(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: infer {infer|draw|blur|noop} [flags]")
	}
	cfg := &Config{Command: args[0]}

	var configPath string
	peek := flag.NewFlagSet(args[0], flag.ContinueOnError)
	peek.StringVar(&configPath, "config", "", "YAML config file, overridden by any flag also given")
	peek.SetOutput(io.Discard)
	_ = peek.Parse(args[1:])
	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.StringVar(&configPath, "config", configPath, "YAML config file, overridden by any flag also given")

	fs.StringVar(&cfg.Input, "i", cfg.Input, "input descriptor")
	fs.StringVar(&cfg.Input, "input", cfg.Input, "input descriptor")
	fs.Var(&cfg.Outputs, "o", "output descriptor (repeatable)")
	fs.Var(&cfg.Outputs, "outputs", "output descriptor (repeatable)")
	fs.StringVar(&cfg.RecognitionID, "r", cfg.RecognitionID, "recognition/model id")
	fs.StringVar(&cfg.RecognitionID, "recognition_id", cfg.RecognitionID, "recognition/model id")
	fs.StringVar(&cfg.AMQPURL, "u", cfg.AMQPURL, "AMQP URL, enables the RPC backend")
	fs.StringVar(&cfg.AMQPURL, "amqp_url", cfg.AMQPURL, "AMQP URL, enables the RPC backend")
	fs.StringVar(&cfg.RoutingKey, "k", cfg.RoutingKey, "AMQP routing key")
	fs.StringVar(&cfg.RoutingKey, "routing_key", cfg.RoutingKey, "AMQP routing key")
	fs.Func("t", "override per-label thresholds", func(v string) error {
		var t float64
		if _, err := fmt.Sscanf(v, "%f", &t); err != nil {
			return err
		}
		cfg.Threshold, cfg.ThresholdSet = t, true
		return nil
	})
	fs.Func("threshold", "override per-label thresholds", func(v string) error {
		var t float64
		if _, err := fmt.Sscanf(v, "%f", &t); err != nil {
			return err
		}
		cfg.Threshold, cfg.ThresholdSet = t, true
		return nil
	})
	fs.IntVar(&cfg.InputFPS, "input_fps", cfg.InputFPS, "video downsample fps")
	fs.IntVar(&cfg.OutputFPS, "output_fps", cfg.OutputFPS, "video writer fps")
	fs.IntVar(&cfg.SkipFrame, "skip_frame", cfg.SkipFrame, "frame stride")
	fs.StringVar(&cfg.FromFile, "from_file", cfg.FromFile, "file-backed backend source")
	fs.BoolVar(&cfg.StudioFormat, "s", cfg.StudioFormat, "emit studio-shape JSON")
	fs.BoolVar(&cfg.StudioFormat, "studio_format", cfg.StudioFormat, "emit studio-shape JSON")
	fs.BoolVar(&cfg.Recursive, "R", cfg.Recursive, "directory recursion")
	fs.BoolVar(&cfg.Recursive, "recursive", cfg.Recursive, "directory recursion")
	fs.BoolVar(&cfg.DrawScores, "draw_scores", cfg.DrawScores, "overlay prediction scores")
	fs.BoolVar(&cfg.DrawLabels, "draw_labels", cfg.DrawLabels, "overlay prediction labels")
	fs.StringVar(&cfg.BlurMethod, "blur_method", cfg.BlurMethod, "pixel|gaussian|black")
	fs.IntVar(&cfg.BlurStrength, "blur_strength", cfg.BlurStrength, "blur strength")
	fs.BoolVar(&cfg.Fullscreen, "F", cfg.Fullscreen, "window sink fullscreen")
	fs.BoolVar(&cfg.Fullscreen, "fullscreen", cfg.Fullscreen, "window sink fullscreen")
	fs.BoolVar(&cfg.WatchInput, "watch", cfg.WatchInput, "keep ingesting new files dropped into --input (hot folder)")
	fs.StringVar(&cfg.ServiceAction, "service", "", "install|uninstall|start|stop|run this invocation as a background OS service")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	cfg.AppID = os.Getenv("APP_ID")
	cfg.APIKey = os.Getenv("API_KEY")
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// build wires every pipeline component per SPEC_FULL.md §3 and returns
// a ready-to-run Supervisor.
func build(cfg *Config, log pipelog.Logger) (*supervisor.Supervisor, error) {
	ctr := &reader.Counter{}
	readerOpts := reader.Options{
		Recursive: cfg.Recursive,
		InputFPS:  cfg.InputFPS,
		SkipFrame: cfg.SkipFrame,
		Counter:   ctr,
		Logger:    log,
	}

	var rd reader.Reader
	var err error
	if cfg.WatchInput {
		rd, err = reader.NewWatchedDirectory(cfg.Input, readerOpts)
	} else {
		rd, err = reader.Select(cfg.Input, readerOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	sinks := make([]sink.Sink, 0, len(cfg.Outputs))
	for _, out := range cfg.Outputs {
		s, err := sink.Select(out, sink.Options{
			OutputFPS:  cfg.OutputFPS,
			Fullscreen: cfg.Fullscreen,
			Cancel:     requestGracefulStop,
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", out, err)
		}
		sinks = append(sinks, s)
	}
	outSink := sink.Sink(sinks[0])
	if len(sinks) > 1 {
		outSink = sink.NewMulti(log, sinks...)
	}

	bk, cleanupBackend, alerter, err := buildBackend(cfg, log)
	if err != nil {
		return nil, err
	}

	// Reader -> Encoder is the only queue that ever sees a DropOldest
	// discipline: infinite sources (streams/devices) never block the
	// Reader, everything else backpressures normally (spec §5).
	// DropOldest holds at most the single newest frame (spec glossary:
	// "a bounded queue whose producer clears the contents before
	// enqueueing"), so it has no capacity parameter.
	var q1 queue.Queue[*frame.Frame]
	q1Capacity := queueCapacity
	if rd.IsInfinite() {
		q1 = queue.NewDropOldest[*frame.Frame]("reader->encoder")
		q1Capacity = 1
	} else {
		q1 = queue.NewBounded[*frame.Frame](queueCapacity)
	}
	q2 := queue.NewBounded[*frame.Frame](queueCapacity)
	q3 := queue.NewBounded[*frame.Frame](queueCapacity)
	q4 := queue.NewBounded[*frame.Frame](queueCapacity)

	errBox := &errorBox{}
	handler := func(err error) { errBox.call(err) }

	readerPump := stage.NewReaderPump(rd, q1, log)
	encoder := stage.NewEncoder(1, 90, q1, q2, handler, log)
	sender := stage.NewSender(stage.SenderConfig{Workers: 5}, bk, q2, q3, handler, log)
	receiver := stage.NewReceiver(stage.ReceiverConfig{
		Timeout:       30 * time.Second,
		UserThreshold: cfg.thresholdPtr(),
		StudioFormat:  cfg.StudioFormat,
	}, q3, q4, handler, log)
	outputter := stage.NewOutputter(q4, outSink, postProcessor(cfg), log)

	opts := []supervisor.Option{supervisor.WithProgress()}
	if alerter != nil {
		opts = append(opts, supervisor.WithAlerter(alerter))
	}

	sup := supervisor.New(
		readerPump,
		[]supervisor.Stage{encoder, sender, receiver, outputter},
		[]supervisor.NamedQueue{
			{Name: "reader->encoder", Queue: q1, Capacity: q1Capacity},
			{Name: "encoder->sender", Queue: q2, Capacity: queueCapacity},
			{Name: "sender->receiver", Queue: q3, Capacity: queueCapacity},
			{Name: "receiver->outputter", Queue: q4, Capacity: queueCapacity},
		},
		func() error {
			if cleanupBackend != nil {
				return cleanupBackend()
			}
			return nil
		},
		log,
		opts...,
	)
	errBox.sup = sup
	return sup, nil
}

// requestGracefulStop lets the DisplaySink's "q" keypress drive the
// same interrupt path a terminal SIGINT would: one call is exactly one
// graceful-drain signal, so a second keypress (or a real SIGINT)
// escalates to hard stop, matching spec §5's two-level semantics.
func requestGracefulStop() {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	_ = p.Signal(syscall.SIGINT)
}

// errorBox breaks the New-before-OnError-exists ordering: handler
// closures are built before the Supervisor they escalate to, so they
// close over this box instead and it is filled in once New returns.
type errorBox struct {
	sup *supervisor.Supervisor
}

func (b *errorBox) call(err error) {
	if b.sup != nil {
		b.sup.OnError(err)
	}
}

// buildBackend returns the Backend, its cleanup hook, and (cloud backend
// only) an Alerter the Supervisor can use to surface a stalled pipeline
// against the same API the frames are sent to.
func buildBackend(cfg *Config, log pipelog.Logger) (backend.Backend, func() error, supervisor.Alerter, error) {
	switch {
	case cfg.Command == "noop":
		return noop.New(), nil, nil, nil
	case cfg.FromFile != "":
		index, err := reader.FromStudioFile(cfg.FromFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("from_file: %w", err)
		}
		return file.New(index), nil, nil, nil
	case cfg.AMQPURL != "":
		b, err := rpc.New(rpc.Config{URL: cfg.AMQPURL, RoutingKey: cfg.RoutingKey, RecognitionID: cfg.RecognitionID}, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("rpc backend: %w", err)
		}
		return b, b.Close, nil, nil
	case cfg.Command == "draw" || cfg.Command == "blur":
		return noop.New(), nil, nil, nil
	default:
		apiURL := os.Getenv("API_URL")
		if apiURL == "" {
			return nil, nil, nil, fmt.Errorf("API_URL environment variable is required for the cloud backend")
		}
		b := cloud.New(cloud.Config{APIURL: apiURL, AppID: cfg.AppID, APIKey: cfg.APIKey, RecognitionID: cfg.RecognitionID}, nil, log)
		return b, b.Close, cloud.NewAlerter(b, log), nil
	}
}

func postProcessor(cfg *Config) stage.PostProcessor {
	switch cfg.Command {
	case "draw":
		opts := postprocess.DefaultDrawOptions()
		opts.Labels = cfg.DrawLabels
		opts.Scores = cfg.DrawScores
		return stage.NewDrawProcessor(opts)
	case "blur":
		return stage.NewBlurProcessor(postprocess.BlurOptions{
			Method:   postprocess.BlurMethod(cfg.BlurMethod),
			Strength: cfg.BlurStrength,
		})
	default:
		return nil
	}
}
