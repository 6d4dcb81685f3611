package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ksred/linkdesk/internal/metrics"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// PatchFunc performs one data or schema patch inside the given transaction
type PatchFunc func(ctx context.Context, tx *gorm.DB, logger zerolog.Logger) error

// Patch is a registered patch. ID is the manifest identifier without any "#comment".
type Patch struct {
	ID          string
	Description string
	Run         PatchFunc
}

// RunOptions controls a full patch run
type RunOptions struct {
	// SkipFailing logs a failing patch as skipped, with its traceback, and keeps going
	SkipFailing bool
}

// RunReport lists what a run did, by manifest line
type RunReport struct {
	Executed       []string `json:"executed" yaml:"executed"`
	Skipped        []string `json:"skipped" yaml:"skipped"`
	AlreadyApplied []string `json:"already_applied" yaml:"already_applied"`
}

// PatchRunner executes registered patches in manifest order and records each
// attempt in patch_logs
type PatchRunner struct {
	db        *gorm.DB
	logger    zerolog.Logger
	patches   map[string]Patch
	manifest  Manifest
	modelSync func(*gorm.DB) error
	metrics   *metrics.Collector
	mu        sync.Mutex
}

// NewPatchRunner creates a runner whose model sync step is SyncModels
func NewPatchRunner(db *gorm.DB, logger zerolog.Logger) *PatchRunner {
	return &PatchRunner{
		db:        db,
		logger:    logger.With().Str("component", "patch_runner").Logger(),
		patches:   make(map[string]Patch),
		modelSync: SyncModels,
	}
}

// Register adds a patch to the runner
func (r *PatchRunner) Register(patch Patch) error {
	if patch.ID == "" || patch.Run == nil {
		return utils.WrapValidationError("patch", "id and run function are required")
	}
	if models.PatchKey(patch.ID) != patch.ID {
		return utils.InvalidFieldError("patch", fmt.Sprintf("id %q must not carry a comment", patch.ID))
	}
	if _, exists := r.patches[patch.ID]; exists {
		return utils.WrapConflictError("patch", "id", patch.ID)
	}
	r.patches[patch.ID] = patch
	return nil
}

// SetManifest sets the execution order used by Run and Pending
func (r *PatchRunner) SetManifest(m Manifest) {
	r.manifest = m
}

// Manifest returns the execution order
func (r *PatchRunner) Manifest() Manifest {
	return r.manifest
}

// SetModelSync replaces the step that runs between pre and post model sync patches
func (r *PatchRunner) SetModelSync(fn func(*gorm.DB) error) {
	r.modelSync = fn
}

// SetMetrics counts executions on c
func (r *PatchRunner) SetMetrics(c *metrics.Collector) {
	r.metrics = c
}

// Registered returns the IDs of all registered patches, sorted
func (r *PatchRunner) Registered() []string {
	ids := make([]string, 0, len(r.patches))
	for id := range r.patches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *PatchRunner) lookup(identifier string) (Patch, error) {
	patch, ok := r.patches[models.PatchKey(identifier)]
	if !ok {
		return Patch{}, utils.WrapNotFoundError("patch", identifier)
	}
	return patch, nil
}

// Run syncs the patch log table, runs pending pre-sync patches, syncs the
// models, then runs pending post-sync patches
func (r *PatchRunner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range r.manifest.All() {
		if _, err := r.lookup(line); err != nil {
			return nil, err
		}
	}

	if err := SyncPatchLog(r.db.WithContext(ctx)); err != nil {
		return nil, err
	}

	report := &RunReport{}

	if err := r.runLines(ctx, r.manifest.PreModelSync, opts, report); err != nil {
		return report, err
	}

	if r.modelSync != nil {
		r.logger.Info().Msg("Syncing models")
		if err := r.modelSync(r.db.WithContext(ctx)); err != nil {
			return report, err
		}
	}

	if err := r.runLines(ctx, r.manifest.PostModelSync, opts, report); err != nil {
		return report, err
	}

	r.logger.Info().
		Int("executed", len(report.Executed)).
		Int("skipped", len(report.Skipped)).
		Int("already_applied", len(report.AlreadyApplied)).
		Msg("Patch run finished")

	return report, nil
}

func (r *PatchRunner) runLines(ctx context.Context, lines []string, opts RunOptions, report *RunReport) error {
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := r.executed(ctx, line)
		if err != nil {
			return err
		}
		if done {
			r.logger.Debug().Str("patch", line).Msg("Patch already applied, skipping")
			report.AlreadyApplied = append(report.AlreadyApplied, line)
			continue
		}

		patch, _ := r.lookup(line)
		if err := r.execute(ctx, line, patch); err != nil {
			if !opts.SkipFailing {
				return err
			}
			r.logger.Error().Err(err).Str("patch", line).Msg("Failed to execute patch, skipping")
			if err := r.recordSkipped(ctx, line, err); err != nil {
				return err
			}
			report.Skipped = append(report.Skipped, line)
			continue
		}
		report.Executed = append(report.Executed, line)
	}
	return nil
}

// RunSingle runs one patch by manifest line. Without force an already
// executed patch is left alone and (false, nil) is returned.
func (r *PatchRunner) RunSingle(ctx context.Context, identifier string, force bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	patch, err := r.lookup(identifier)
	if err != nil {
		return false, err
	}

	if !force {
		done, err := r.executed(ctx, identifier)
		if err != nil {
			return false, err
		}
		if done {
			return false, nil
		}
	}

	if err := r.execute(ctx, identifier, patch); err != nil {
		return false, err
	}
	return true, nil
}

// execute runs the patch and records it in one transaction. Any failure,
// including a panic, rolls both back and comes back with a stack trace.
func (r *PatchRunner) execute(ctx context.Context, line string, patch Patch) error {
	start := time.Now()
	r.logger.Info().Str("patch", line).Msg("Executing patch")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.invoke(ctx, tx, patch); err != nil {
			return err
		}
		return r.recordExecuted(tx, line)
	})
	if err != nil {
		r.metrics.RecordPatchRun("failed")
		return err
	}

	r.metrics.RecordPatchRun("executed")
	r.logger.Info().Str("patch", line).Dur("elapsed", time.Since(start)).Msg("Patch executed")
	return nil
}

func (r *PatchRunner) invoke(ctx context.Context, tx *gorm.DB, patch Patch) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("patch %s panicked: %v", patch.ID, rec)
		}
	}()

	if err := patch.Run(ctx, tx, r.logger.With().Str("patch", patch.ID).Logger()); err != nil {
		return errors.Wrapf(err, "patch %s failed", patch.ID)
	}
	return nil
}

// recordExecuted appends a log row for a successful execution of line
func (r *PatchRunner) recordExecuted(tx *gorm.DB, line string) error {
	if err := tx.Create(&models.PatchLog{Patch: line}).Error; err != nil {
		return utils.WrapDatabaseError("record patch", err)
	}
	return nil
}

// recordSkipped appends a skipped row carrying the failure traceback
func (r *PatchRunner) recordSkipped(ctx context.Context, line string, cause error) error {
	traceback := fmt.Sprintf("%+v", cause)
	r.metrics.RecordPatchRun("skipped")

	log := &models.PatchLog{Patch: line, Skipped: true, Traceback: &traceback}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return utils.WrapDatabaseError("record skipped patch", err)
	}
	return nil
}

// Executed reports whether a non-skipped log exists for the manifest line
func (r *PatchRunner) Executed(ctx context.Context, identifier string) (bool, error) {
	return r.executed(ctx, identifier)
}

func (r *PatchRunner) executed(ctx context.Context, identifier string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PatchLog{}).
		Where("patch = ? AND skipped = ?", identifier, false).
		Count(&count).Error
	if err != nil {
		return false, utils.WrapDatabaseError("check patch log", err)
	}
	return count > 0, nil
}

// Pending returns manifest lines that have not been executed, in order
func (r *PatchRunner) Pending(ctx context.Context) ([]string, error) {
	var done []string
	if err := r.db.WithContext(ctx).Model(&models.PatchLog{}).
		Where("skipped = ?", false).
		Pluck("patch", &done).Error; err != nil {
		return nil, utils.WrapDatabaseError("list patch logs", err)
	}

	applied := make(map[string]bool, len(done))
	for _, p := range done {
		applied[p] = true
	}

	var pending []string
	for _, line := range r.manifest.All() {
		if !applied[line] {
			pending = append(pending, line)
		}
	}
	return pending, nil
}
