// Package inbox turns YAML request files dropped into a directory into
// optimization runs. Each result is written as JSON to the output store and
// the request file is moved to processed/ or failed/.
package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/starford/scribe/internal/pipeline"
	"github.com/starford/scribe/internal/runstore"
	"github.com/starford/scribe/internal/storage"
)

// Subdirectories of the inbox root.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

var requestExts = []string{".yaml", ".yml"}

// Runner executes one optimization job.
type Runner interface {
	Optimize(ctx context.Context, in pipeline.OptimizeInput) (*runstore.Run, error)
}

// Callback is told about each handled file. err is nil on success.
type Callback func(file string, run *runstore.Run, err error)

// Inbox watches one directory for request files.
type Inbox struct {
	root   string
	in     storage.Provider
	out    storage.Provider
	runner Runner
	settle time.Duration
	logger *slog.Logger
	cb     Callback

	// discard deletes handled requests instead of moving them to processed/.
	discard bool

	// path -> checksum of handled files still sitting in the root, which
	// happens when moving them away failed. Not safe for concurrent sweeps.
	seen map[string]string
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithSettle sets how long the directory must be quiet before a sweep.
func WithSettle(d time.Duration) Option {
	return func(i *Inbox) {
		if d > 0 {
			i.settle = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Inbox) { i.logger = l }
}

func WithCallback(cb Callback) Option {
	return func(i *Inbox) { i.cb = cb }
}

// WithDiscardProcessed deletes successful request files instead of keeping
// them under processed/. Failed requests are always kept.
func WithDiscardProcessed(discard bool) Option {
	return func(i *Inbox) { i.discard = discard }
}

// New creates an Inbox. root is the directory behind in; fsnotify needs the
// real path.
func New(root string, in, out storage.Provider, runner Runner, opts ...Option) *Inbox {
	i := &Inbox{
		root:   root,
		in:     in,
		out:    out,
		runner: runner,
		settle: 200 * time.Millisecond,
		logger: slog.Default(),
		seen:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Watch sweeps once, then sweeps again whenever request files appear or
// change, until ctx is cancelled. Only the root directory is watched.
func (i *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: new watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(i.root); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", i.root, err)
	}
	i.logger.Info("inbox: started", slog.String("root", i.root))

	if _, err := i.Sweep(ctx); err != nil {
		return err
	}

	var settleTimer *time.Timer
	var settleCh <-chan time.Time
	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(i.settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(i.settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			i.logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			if _, err := i.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				i.logger.Warn("inbox: sweep failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !isRequestFile(filepath.Base(ev.Name)) {
				continue
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			i.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func isRequestFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, ext := range requestExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Sweep handles every pending request file once and returns how many it
// handled. Only context cancellation stops a sweep early.
func (i *Inbox) Sweep(ctx context.Context) (int, error) {
	files, err := i.in.List("", requestExts...)
	if err != nil {
		return 0, fmt.Errorf("inbox: list: %w", err)
	}
	listed := make(map[string]struct{}, len(files))
	for _, f := range files {
		listed[f.Path] = struct{}{}
	}
	for p := range i.seen {
		if _, ok := listed[p]; !ok {
			delete(i.seen, p)
		}
	}

	n := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if i.seen[f.Path] == f.Checksum {
			continue
		}
		run, err := i.handle(ctx, f.Path)
		if err != nil && ctx.Err() != nil {
			return n, ctx.Err()
		}
		i.seen[f.Path] = f.Checksum
		n++
		if i.cb != nil {
			i.cb(f.Path, run, err)
		}
	}
	return n, nil
}

// Job is the shape of a request file.
type Job = pipeline.OptimizeInput

// ParseJob decodes a request file. Unknown fields are rejected.
func ParseJob(data []byte) (Job, error) {
	var job Job
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&job); err != nil {
		return Job{}, fmt.Errorf("decode request: %w", err)
	}
	return job, nil
}

func (i *Inbox) handle(ctx context.Context, file string) (*runstore.Run, error) {
	log := i.logger.With(slog.String("file", file))
	stem := strings.TrimSuffix(file, path.Ext(file))

	data, err := i.in.Read(file)
	if err != nil {
		return nil, i.fail(log, file, stem, err)
	}
	job, err := ParseJob(data)
	if err != nil {
		return nil, i.fail(log, file, stem, err)
	}
	job.Source = pipeline.SourceInbox

	run, err := i.runner.Optimize(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, i.fail(log, file, stem, err)
	}

	body, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, i.fail(log, file, stem, err)
	}
	if err := i.out.Write(stem+".json", body); err != nil {
		return nil, i.fail(log, file, stem, err)
	}
	if i.discard {
		if err := i.in.Delete(file); err != nil {
			log.Warn("inbox: delete request failed", slog.String("error", err.Error()))
		}
	} else if err := i.in.Move(file, path.Join(ProcessedDir, file)); err != nil {
		log.Warn("inbox: move to processed failed", slog.String("error", err.Error()))
	}
	log.Info("inbox: request done",
		slog.String("run_id", run.ID),
		slog.Int("score", run.Score.Score),
		slog.Bool("accepted", run.Accepted))
	return run, nil
}

type failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

func (i *Inbox) fail(log *slog.Logger, file, stem string, cause error) error {
	log.Warn("inbox: request failed", slog.String("error", cause.Error()))
	body, _ := json.MarshalIndent(failure{File: file, Error: cause.Error()}, "", "  ")
	if err := i.out.Write(stem+".error.json", body); err != nil {
		log.Warn("inbox: write error report failed", slog.String("error", err.Error()))
	}
	if err := i.in.Move(file, path.Join(FailedDir, file)); err != nil {
		log.Warn("inbox: move to failed failed", slog.String("error", err.Error()))
	}
	return cause
}
