package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/pontifexx/supplier-portal/internal/logger"
	"github.com/pontifexx/supplier-portal/internal/models"
	"github.com/pontifexx/supplier-portal/internal/store"
	"github.com/pontifexx/supplier-portal/internal/ultimo"
)

var (
	// ErrNoMapping is returned when a job's current status has no configured
	// transition, so a supplier cannot complete it.
	ErrNoMapping = errors.New("no status mapping configured for the job's current status")

	// ErrNotAssigned is returned when the caller is not a vendor contact on
	// the job being completed.
	ErrNotAssigned = errors.New("job is not assigned to this supplier")
)

// SupplierJob is a cached job annotated for presentation: which customer it
// belongs to, and whether a status mapping makes it completable.
type SupplierJob struct {
	models.CachedJob
	CustomerName string `json:"customer_name"`
	TargetStatus string `json:"target_status,omitempty"`
	Completable  bool   `json:"completable"`
}

// CompleteResult reports the outcome of a job completion. ImageWarning is set
// when the status update succeeded but attaching images did not.
type CompleteResult struct {
	TargetStatus string `json:"target_status"`
	ImageWarning string `json:"image_warning,omitempty"`
}

// PortalService implements the supplier-facing operations: listing a
// supplier's jobs and completing one.
type PortalService struct {
	store  *store.DB
	client *ultimo.Client
	access *AccessService
	logger *logger.Logger
}

func NewPortalService(db *store.DB, client *ultimo.Client, access *AccessService, log *logger.Logger) *PortalService {
	return &PortalService{
		store:  db,
		client: client,
		access: access,
		logger: log.WithComponent("portal"),
	}
}

// JobsForEmail returns the cached jobs on which the email is a vendor
// contact, annotated with the mapping-derived target status where one exists.
func (s *PortalService) JobsForEmail(email string) ([]SupplierJob, error) {
	rows, err := s.store.JobsForContactEmail(email)
	if err != nil {
		return nil, err
	}

	customerIDs := make([]int64, 0, len(rows))
	seen := make(map[int64]bool)
	for _, row := range rows {
		if !seen[row.CustomerID] {
			seen[row.CustomerID] = true
			customerIDs = append(customerIDs, row.CustomerID)
		}
	}

	mappings, err := s.store.MappingsForCustomers(customerIDs)
	if err != nil {
		return nil, err
	}

	jobs := make([]SupplierJob, 0, len(rows))
	for _, row := range rows {
		job := SupplierJob{
			CachedJob:    row.CachedJob,
			CustomerName: row.CustomerName,
		}
		if target, ok := mappings[row.CustomerID][row.ProgressStatus]; ok {
			job.TargetStatus = target
			job.Completable = true
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// CompleteJob moves a job to its mapped target status upstream, optionally
// with feedback text and photos, then mirrors the change into the cache. The
// upstream status update is the commit point: an image attachment failure
// afterwards is reported as a warning, not an error.
func (s *PortalService) CompleteJob(ctx context.Context, email string, customerID int64, jobID, feedback string, images []ultimo.Image) (*CompleteResult, error) {
	customer, err := s.store.Customer(customerID)
	if err != nil {
		return nil, err
	}

	job, err := s.store.CachedJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.CustomerID != customerID {
		return nil, store.ErrNotFound
	}

	if !s.access.IsAdmin(email) {
		assigned, err := s.store.JobHasContact(jobID, email)
		if err != nil {
			return nil, err
		}
		if !assigned {
			return nil, ErrNotAssigned
		}
	}

	target, ok, err := s.store.MappingFor(customerID, job.ProgressStatus)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoMapping
	}

	if err := s.client.UpdateJobStatus(ctx, customer.Domain, customer.APIKey, jobID, target, feedback); err != nil {
		return nil, err
	}

	result := &CompleteResult{TargetStatus: target}
	if len(images) > 0 {
		if err := s.client.AttachImages(ctx, customer.Domain, customer.APIKey, jobID, images); err != nil {
			s.logger.Warn("failed to attach images",
				"job_id", jobID, "customer_id", customerID, "error", err)
			result.ImageWarning = err.Error()
		}
	}

	if err := s.updateCache(job, target, feedback); err != nil {
		// The upstream update already succeeded; a stale cache row heals on
		// the next sync.
		s.logger.Warn("failed to update cached job after completion",
			"job_id", jobID, "error", err)
	}
	return result, nil
}

// updateCache mirrors the confirmed status change into the cached payload so
// the supplier's job list reflects it before the next sync.
func (s *PortalService) updateCache(job *models.CachedJob, target, feedback string) error {
	data := job.Data
	if len(data) > 0 {
		patched, err := patchJobPayload(data, target, feedback)
		if err == nil {
			data = patched
		}
	}
	return s.store.UpdateCachedJobStatus(job.ID, job.CustomerID, target, data)
}

// patchJobPayload rewrites the status and feedback fields inside the raw
// upstream payload, keeping every other field intact.
func patchJobPayload(data []byte, target, feedback string) ([]byte, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	status, err := json.Marshal(target)
	if err != nil {
		return nil, err
	}
	payload["ProgressStatus"] = status

	if strings.TrimSpace(feedback) != "" {
		fb, err := json.Marshal(ultimo.TruncateFeedback(feedback))
		if err != nil {
			return nil, err
		}
		payload["FeedbackText"] = fb
	}
	return json.Marshal(payload)
}
