package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/config"
	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// ErrReportNotFound is returned when no stored report has the requested id
var ErrReportNotFound = errors.New("report not found")

const reportPrefix = "reports/"

// ReportArchive persists cycle reports as JSON documents named
// reports/<yyyy-mm-dd>/<hhmmss.000>_<id>.json
type ReportArchive struct {
	backend Backend
	keep    int
}

// NewReportArchive wraps a backend. keep <= 0 disables pruning.
func NewReportArchive(backend Backend, keep int) *ReportArchive {
	return &ReportArchive{backend: backend, keep: keep}
}

// NewBackendFromConfig picks Azure Blob Storage when an account is
// configured, then the local archive directory. It returns nil when
// neither is set.
func NewBackendFromConfig(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch {
	case cfg.StorageAccount != "":
		logrus.Infof("Archiving cycle reports to Azure container %s", cfg.StorageContainer)
		return NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	case cfg.ArchiveDir != "":
		logrus.Infof("Archiving cycle reports to %s", cfg.ArchiveDir)
		return NewFileStorage(cfg.ArchiveDir)
	default:
		return nil, nil
	}
}

func reportName(r *models.CycleReport) string {
	started := r.StartedAt.UTC()
	return fmt.Sprintf("%s%s/%s_%s.json", reportPrefix,
		started.Format("2006-01-02"), started.Format("150405.000"), r.ID)
}

func reportID(name string) string {
	base := strings.TrimSuffix(path.Base(name), ".json")
	if i := strings.IndexByte(base, '_'); i >= 0 {
		return base[i+1:]
	}
	return base
}

// Save stores a report and prunes the oldest ones beyond the retention limit
func (a *ReportArchive) Save(ctx context.Context, report *models.CycleReport) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("report id is required")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := a.backend.Store(ctx, reportName(report), data); err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.ID, err)
	}

	if a.keep > 0 {
		if err := a.prune(ctx); err != nil {
			logrus.Warnf("Failed to prune old reports: %v", err)
		}
	}
	return nil
}

// List returns the stored report ids, newest first
func (a *ReportArchive) List(ctx context.Context) ([]string, error) {
	names, err := a.sorted(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		ids = append(ids, reportID(names[i]))
	}
	return ids, nil
}

// Get loads a report by id
func (a *ReportArchive) Get(ctx context.Context, id string) (*models.CycleReport, error) {
	names, err := a.backend.List(ctx, reportPrefix)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		if reportID(name) != id {
			continue
		}
		data, err := a.backend.Retrieve(ctx, name)
		if err != nil {
			return nil, err
		}
		var report models.CycleReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
		}
		return &report, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
}

// sorted lists report names oldest first
func (a *ReportArchive) sorted(ctx context.Context) ([]string, error) {
	names, err := a.backend.List(ctx, reportPrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (a *ReportArchive) prune(ctx context.Context) error {
	names, err := a.sorted(ctx)
	if err != nil {
		return err
	}
	if len(names) <= a.keep {
		return nil
	}

	var errs []string
	for _, name := range names[:len(names)-a.keep] {
		if err := a.backend.Delete(ctx, name); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("prune errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
