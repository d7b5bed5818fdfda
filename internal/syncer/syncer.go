// Package syncer runs the background job refresh. A ticker wakes up every
// minute and consults the sync control row; a refresh actually happens only
// when one is forced, when no sync has ever run, or when the configured
// interval has elapsed since the last completion.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pontifexx/supplier-portal/internal/constants"
	"github.com/pontifexx/supplier-portal/internal/logger"
	"github.com/pontifexx/supplier-portal/internal/models"
	"github.com/pontifexx/supplier-portal/internal/store"
	"github.com/pontifexx/supplier-portal/internal/ultimo"
)

// ErrSyncBusy is returned when a force request arrives while a refresh is
// already running.
var ErrSyncBusy = errors.New("a sync is already in progress")

// watermarkLayouts are the timestamp shapes Ultimo has been seen returning
// for RecordChangeDate.
var watermarkLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type Syncer struct {
	store  *store.DB
	client *ultimo.Client
	logger *logger.Logger

	tick time.Duration
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(db *store.DB, client *ultimo.Client, log *logger.Logger) *Syncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Syncer{
		store:  db,
		client: client,
		logger: log.WithComponent("syncer"),
		tick:   constants.SyncTickInterval,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the poller goroutine.
func (s *Syncer) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("sync poller started", "tick", s.tick.String())
}

// Stop signals the poller to exit and waits for it.
func (s *Syncer) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("sync poller stopped")
}

func (s *Syncer) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// Run once at startup so a fresh deployment does not sit empty for a
	// full tick.
	s.safeTick()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.safeTick()
		}
	}
}

// safeTick shields the poller loop from panics in a single refresh. The
// in-progress flag is released so the next tick is not locked out forever.
func (s *Syncer) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sync tick panicked", "panic", r)
			if err := s.store.ReleaseSync(); err != nil {
				s.logger.Error("failed to release sync flag", "error", err)
			}
		}
	}()

	if err := s.Tick(s.ctx); err != nil {
		s.logger.Error("sync tick failed", "error", err)
	}
}

// Tick consults the control row and runs one refresh if due. A forced
// request wins over the interval check; a control row that has never
// recorded a completion is always due.
func (s *Syncer) Tick(ctx context.Context) error {
	ctl, err := s.store.SyncControl()
	if err != nil {
		return err
	}

	if !s.due(ctl) {
		return nil
	}

	claimed, err := s.store.ClaimSync()
	if err != nil {
		return err
	}
	if !claimed {
		s.logger.Debug("sync already claimed, skipping tick")
		return nil
	}

	s.syncAll(ctx)

	if err := s.store.FinishSync(s.now()); err != nil {
		// The claim is held; clear the flag so the next tick is not
		// locked out until restart.
		if relErr := s.store.ReleaseSync(); relErr != nil {
			s.logger.Error("failed to release sync flag", "error", relErr)
		}
		return err
	}
	return nil
}

func (s *Syncer) due(ctl *models.SyncControl) bool {
	if ctl.InProgress {
		return false
	}
	if ctl.ForceSync {
		return true
	}
	if ctl.LastSync == nil {
		return true
	}
	interval := time.Duration(ctl.SyncInterval) * time.Second
	return s.now().Sub(*ctl.LastSync) >= interval
}

// syncAll refreshes every customer. One customer failing does not stop the
// others; the error is logged and the loop moves on.
func (s *Syncer) syncAll(ctx context.Context) {
	customers, err := s.store.ListCustomers()
	if err != nil {
		s.logger.Error("failed to list customers", "error", err)
		return
	}

	for _, customer := range customers {
		log := s.logger.WithCustomer(customer.ID, customer.Name)
		n, err := s.syncCustomer(ctx, &customer)
		if err != nil {
			log.Error("customer sync failed", "error", err)
			continue
		}
		log.Info("customer synced", "jobs", n)
	}
}

func (s *Syncer) syncCustomer(ctx context.Context, customer *models.Customer) (int, error) {
	watermark, err := s.store.JobWatermark(customer.ID)
	if err != nil {
		return 0, err
	}

	filter := ""
	if watermark != "" {
		filter = "RecordChangeDate gt " + formatWatermark(watermark)
	}

	jobs, err := s.client.Jobs(ctx, customer.Domain, customer.APIKey, filter, ultimo.ExpandAll)
	if err != nil {
		return 0, err
	}

	for _, job := range jobs {
		cached, contacts := s.toCachedJob(customer.ID, &job)
		if err := s.store.UpsertCachedJob(cached, contacts); err != nil {
			return 0, err
		}
	}
	return len(jobs), nil
}

// toCachedJob flattens an upstream job into a cache row plus its slice of the
// contact-email index.
func (s *Syncer) toCachedJob(customerID int64, job *ultimo.Job) (*models.CachedJob, []models.JobContact) {
	changed := job.RecordChangeDate
	if changed == "" {
		changed = s.now().Format("2006-01-02 15:04:05")
	}

	cached := &models.CachedJob{
		ID:               job.ID,
		CustomerID:       customerID,
		Description:      job.Description,
		ProgressStatus:   job.ProgressStatus,
		RecordChangeDate: changed,
		Data:             job.Raw,
	}
	if job.Equipment != nil {
		cached.EquipmentDescription = job.Equipment.Description
	}
	if job.ProcessFunction != nil {
		cached.ProcessFunctionDescription = job.ProcessFunction.Description
	}

	var vendorName string
	if job.Vendor != nil {
		cached.VendorID = job.Vendor.ID
		vendorName = job.Vendor.Description
	}

	var contacts []models.JobContact
	for _, emp := range job.ContactEmails() {
		contacts = append(contacts, models.JobContact{
			JobID:      job.ID,
			CustomerID: customerID,
			Email:      emp.EmailAddress,
			Name:       emp.Description,
			VendorID:   cached.VendorID,
			VendorName: vendorName,
		})
	}
	return cached, contacts
}

// TriggerNow requests an immediate refresh on the next tick. It refuses while
// a refresh is already running.
func (s *Syncer) TriggerNow() error {
	ctl, err := s.store.SyncControl()
	if err != nil {
		return err
	}
	if ctl.InProgress {
		return ErrSyncBusy
	}
	return s.store.RequestForceSync()
}

// formatWatermark normalizes a stored change timestamp into the UTC shape
// Ultimo's filter expressions expect. Unparseable values pass through as-is
// so a single odd row cannot stall the whole customer.
func formatWatermark(raw string) string {
	for _, layout := range watermarkLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	return raw
}
