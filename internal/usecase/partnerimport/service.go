package partnerimport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/infrastructure/tabular"
	"partnermap/internal/ports"
)

const DefaultURLPrefix = "/uploads/partner-imports"

var (
	ErrFileRequired    = errors.New("missing file (field name: file)")
	ErrUnsupportedFile = errors.New("only .csv, .tsv, .txt or .xlsx files are supported")

	unsafeFileNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	stampReplacer    = strings.NewReplacer(":", "-", ".", "-")
)

// Service accepts uploads and hands them to the import worker.
type Service struct {
	jobs      ports.ImportJobRepository
	files     ports.FileStore
	queue     ports.JobQueue
	urlPrefix string
	clock     clock.PassiveClock
}

func NewService(jobs ports.ImportJobRepository, files ports.FileStore, queue ports.JobQueue, urlPrefix string, c clock.PassiveClock) *Service {
	urlPrefix = strings.TrimRight(strings.TrimSpace(urlPrefix), "/")
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if c == nil {
		c = clock.RealClock{}
	}
	return &Service{jobs: jobs, files: files, queue: queue, urlPrefix: urlPrefix, clock: c}
}

type Upload struct {
	FileName string
	Data     []byte
}

// Submit stores the upload, records a queued job and publishes it. The job
// stays queued if publishing fails; a worker restart picks it up.
func (s *Service) Submit(ctx context.Context, upload Upload) (partner.ImportJob, error) {
	if len(upload.Data) == 0 {
		return partner.ImportJob{}, ErrFileRequired
	}
	fileName := strings.TrimSpace(path.Base(strings.ReplaceAll(upload.FileName, "\\", "/")))
	if fileName == "" || fileName == "." || fileName == "/" {
		fileName = "upload.csv"
	}
	if !tabular.Supported(fileName) {
		return partner.ImportJob{}, ErrUnsupportedFile
	}

	sum := sha256.Sum256(upload.Data)
	now := s.clock.Now().UTC()
	storedName := StoredName(now.Format("2006-01-02T15:04:05.000Z"), fileName)

	if err := s.files.Put(ctx, storedName, bytes.NewReader(upload.Data)); err != nil {
		return partner.ImportJob{}, errs.Wrap(err, "store upload")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return partner.ImportJob{}, errs.Wrap(err, "generate import id")
	}
	job, err := s.jobs.CreateImportJob(ctx, partner.ImportJob{
		ID:               id.String(),
		OriginalFileName: fileName,
		FileURL:          s.urlPrefix + "/" + storedName,
		FileHash:         hex.EncodeToString(sum[:]),
		LocalPath:        storedName,
		Status:           partner.JobQueued,
		CreatedAt:        now,
	})
	if err != nil {
		return partner.ImportJob{}, err
	}

	if err := s.queue.Publish(ctx, ports.JobMessage{Kind: partner.JobKindImport, JobID: job.ID}); err != nil {
		logging.Warn(ctx, "publish import job failed",
			slog.String("job_id", job.ID), slog.Any("err", errs.Loggable(err)))
	}
	logging.Info(ctx, "import submitted",
		slog.String("job_id", job.ID), slog.String("file", fileName), slog.String("sha256", job.FileHash))
	return job, nil
}

func (s *Service) Get(ctx context.Context, id string) (partner.ImportJob, error) {
	return s.jobs.GetImportJob(ctx, strings.TrimSpace(id))
}

// StoredName builds the storage key "<stamp>-<safe name>" where the ISO
// stamp has ':' and '.' replaced by '-'.
func StoredName(isoStamp string, fileName string) string {
	return stampReplacer.Replace(isoStamp) + "-" + SafeFileName(fileName)
}

func SafeFileName(name string) string {
	return unsafeFileNameRe.ReplaceAllString(name, "_")
}
