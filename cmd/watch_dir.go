package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/utils/clock"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/infrastructure/tabular"
	"partnermap/internal/usecase/partnerimport"
)

const defaultWatchQuiet = 2 * time.Second

type importSubmitter interface {
	Submit(ctx context.Context, upload partnerimport.Upload) (partner.ImportJob, error)
}

// uploadWatcher submits files once they have been quiet for a while.
// A file whose content matches its last submission is skipped.
type uploadWatcher struct {
	submit  importSubmitter
	clock   clock.PassiveClock
	quiet   time.Duration
	pending map[string]time.Time
	sums    map[string]string
}

func newUploadWatcher(submit importSubmitter, c clock.PassiveClock, quiet time.Duration) *uploadWatcher {
	if quiet <= 0 {
		quiet = defaultWatchQuiet
	}
	return &uploadWatcher{
		submit:  submit,
		clock:   c,
		quiet:   quiet,
		pending: map[string]time.Time{},
		sums:    map[string]string{},
	}
}

func (u *uploadWatcher) touch(path string) {
	if !tabular.Supported(path) {
		return
	}
	u.pending[path] = u.clock.Now()
}

func (u *uploadWatcher) forget(path string) {
	delete(u.pending, path)
	delete(u.sums, path)
}

// flush submits every pending file whose last event is older than the quiet period.
func (u *uploadWatcher) flush(ctx context.Context) []partner.ImportJob {
	now := u.clock.Now()
	ready := make([]string, 0, len(u.pending))
	for path, seen := range u.pending {
		if now.Sub(seen) >= u.quiet {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	var jobs []partner.ImportJob
	for _, path := range ready {
		delete(u.pending, path)
		job, ok := u.submitFile(ctx, path)
		if ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func (u *uploadWatcher) submitFile(ctx context.Context, path string) (partner.ImportJob, bool) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		u.forget(path)
		return partner.ImportJob{}, false
	}
	if err != nil {
		logging.Warn(ctx, "read watched file failed", slog.String("path", path), slog.Any("err", errs.Loggable(err)))
		return partner.ImportJob{}, false
	}
	if len(data) == 0 {
		return partner.ImportJob{}, false
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if u.sums[path] == hash {
		logging.Info(ctx, "watched file unchanged", slog.String("path", path))
		return partner.ImportJob{}, false
	}

	job, err := u.submit.Submit(ctx, partnerimport.Upload{FileName: filepath.Base(path), Data: data})
	if err != nil {
		logging.Warn(ctx, "submit watched file failed", slog.String("path", path), slog.Any("err", errs.Loggable(err)))
		return partner.ImportJob{}, false
	}
	u.sums[path] = hash
	logging.Info(ctx, "watched file submitted", slog.String("path", path), slog.String("job_id", job.ID))
	return job, true
}

func runWatchDir(ctx context.Context, dir string, quiet time.Duration, submit importSubmitter) error {
	ctx = logging.WithAttrs(ctx, slog.String("component", "cmd.watch_dir"), slog.String("dir", dir))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return errs.Wrapf(err, "watch %s", dir)
	}

	c := clock.RealClock{}
	u := newUploadWatcher(submit, c, quiet)
	ticker := c.NewTicker(u.quiet / 2)
	defer ticker.Stop()

	logging.Info(ctx, "watching upload directory", slog.Duration("quiet", u.quiet))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				u.touch(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				u.forget(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(ctx, "watcher error", slog.Any("err", errs.Loggable(err)))
		case <-ticker.C():
			u.flush(ctx)
		}
	}
}
