// Package pipeline runs one pass of rename -> reconcile -> log append over a
// fixed input set.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/sortie/internal/logstore"
	"github.com/Veraticus/sortie/internal/model"
	"github.com/Veraticus/sortie/internal/reconcile"
	"github.com/Veraticus/sortie/internal/renamer"
	"github.com/Veraticus/sortie/internal/taxonomy"
	"github.com/google/uuid"
)

// ErrMissingDependency is returned when the pipeline is built without one of
// its collaborators.
var ErrMissingDependency = errors.New("pipeline dependency missing")

// Deps are the collaborators a pipeline needs. LockPath is optional; when set
// an exclusive lock file guards the run.
type Deps struct {
	Renamer    *renamer.Renamer
	Classifier *taxonomy.Classifier
	Store      logstore.Store
	Now        func() time.Time
	NewRunID   func() string
	LockPath   string
}

// Input is the fixed input set of a run.
type Input struct {
	Directory string
	Messages  []model.InboundMessage
}

// Report summarizes a run.
type Report struct {
	RunID       string
	Renames     []model.RenameRecord
	Reconciled  reconcile.Result
	Append      logstore.AppendResult
	Diagnostics []model.Diagnostic
}

// Pipeline wires the core components together.
type Pipeline struct {
	renamer    *renamer.Renamer
	classifier *taxonomy.Classifier
	store      logstore.Store
	now        func() time.Time
	newRunID   func() string
	lockPath   string
}

// New validates deps and builds a pipeline.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Renamer == nil:
		return nil, fmt.Errorf("%w: renamer", ErrMissingDependency)
	case deps.Classifier == nil:
		return nil, fmt.Errorf("%w: classifier", ErrMissingDependency)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: log store", ErrMissingDependency)
	}

	p := &Pipeline{
		renamer:    deps.Renamer,
		classifier: deps.Classifier,
		store:      deps.Store,
		now:        deps.Now,
		newRunID:   deps.NewRunID,
		lockPath:   deps.LockPath,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newRunID == nil {
		p.newRunID = func() string { return uuid.New().String() }
	}
	return p, nil
}

// Run renames the files in in.Directory, reconciles them with in.Messages
// and appends the resulting entries to the log.
//
// A missing directory or a held lock aborts before anything is moved.
// Per-file rename failures and reconciliation gaps are collected in
// Report.Diagnostics and do not stop the run. A canceled ctx is checked only
// before the lock is taken.
func (p *Pipeline) Run(ctx context.Context, in Input) (Report, error) {
	report := Report{RunID: p.newRunID()}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if p.lockPath != "" {
		lock, err := acquireLock(p.lockPath)
		if err != nil {
			return report, err
		}
		defer lock.release()
	}

	slog.Info("Starting run", "run_id", report.RunID, "directory", in.Directory, "messages", len(in.Messages))

	renamed, err := p.renamer.RenameAll(in.Directory)
	if err != nil {
		return report, fmt.Errorf("rename failed: %w", err)
	}
	report.Renames = renamed.Records
	report.Diagnostics = append(report.Diagnostics, renamed.Diagnostics...)

	report.Reconciled = reconcile.New(p.classifier, report.RunID).
		WithClock(p.now).
		Reconcile(in.Messages, renamed.Records)
	report.Diagnostics = append(report.Diagnostics, report.Reconciled.Diagnostics...)

	// Files have moved by now, so the log is written even if ctx is canceled.
	report.Append, err = p.store.Append(context.WithoutCancel(ctx), report.Reconciled.Entries())
	if err != nil {
		return report, fmt.Errorf("failed to append upload log: %w", err)
	}
	if report.Append.Corrupt {
		report.Diagnostics = append(report.Diagnostics, model.Diagnostic{
			Kind:    model.DiagLogCorrupt,
			Subject: "upload log",
			Message: "existing log could not be parsed and was replaced by a new log",
		})
	}

	slog.Info("Run complete",
		"run_id", report.RunID,
		"files", len(report.Renames),
		"entries", report.Append.Appended,
		"log_total", report.Append.Total,
		"diagnostics", len(report.Diagnostics))

	return report, nil
}
