// Package coordinator drives the periodic defense monitoring cycle and owns
// all mutable alerting state: the alert store, the cycle history, and the
// live coordination settings.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/networkbuster/aidefense/internal/admission"
	"github.com/networkbuster/aidefense/internal/detector"
	"github.com/networkbuster/aidefense/internal/models"
	"github.com/networkbuster/aidefense/internal/response"
)

var (
	// ErrAlertNotFound is returned by ManualResponse for unknown alert ids.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrCycleInProgress is returned when a cycle trigger overlaps a
	// running cycle. The trigger is skipped, never queued.
	ErrCycleInProgress = errors.New("monitoring cycle already in progress")
)

// Coordinator states.
const (
	StateReady  = "ready"
	StateActive = "active"
)

// monitoring interval floor applied by TightenInterval
const minMonitoringInterval = 5 * time.Second

// Settings are the runtime-adjustable coordination knobs, patchable via
// UpdateConfiguration.
type Settings struct {
	MonitoringInterval time.Duration
	AlertThreshold     float64
	AutoResponse       bool
	MaxAlertsPerHour   int
}

// AlertPublisher is the optional event bus surface the coordinator notifies.
type AlertPublisher interface {
	PublishAlert(alert *models.Alert) error
	PublishResponse(record models.ResponseRecord) error
}

// AlertArchiver is the optional persistent archive collaborator.
type AlertArchiver interface {
	StoreAlert(ctx context.Context, alert *models.Alert, retention time.Duration) error
}

// Status is a point-in-time snapshot of the coordinator.
type Status struct {
	State         string                 `json:"coordinator_state"`
	Detectors     map[string]string      `json:"detectors"`
	ActiveAlerts  int                    `json:"active_alerts"`
	RecentCycles  int                    `json:"recent_cycles"`
	Configuration map[string]interface{} `json:"configuration"`
	LastCycle     *models.CycleRecord    `json:"last_cycle,omitempty"`
}

// Coordinator is the single owner of alerting state. All reads and writes
// go through its mutex; readers always receive snapshots.
type Coordinator struct {
	mu sync.Mutex

	detectors []detector.Detector
	executor  *response.Executor
	publisher AlertPublisher
	archiver  AlertArchiver

	settings        Settings
	retention       time.Duration
	historyLimit    int
	detectorTimeout time.Duration

	alerts         []*models.Alert
	history        []models.CycleRecord
	detectorStatus map[string]string
	state          string

	cycleInFlight atomic.Bool
	now           func() time.Time

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New creates a coordinator in the ready state. Detectors and optional
// collaborators are attached before Activate.
func New(settings Settings, executor *response.Executor) *Coordinator {
	return &Coordinator{
		executor:        executor,
		settings:        settings,
		retention:       24 * time.Hour,
		historyLimit:    100,
		detectorTimeout: 10 * time.Second,
		detectorStatus:  make(map[string]string),
		state:           StateReady,
		now:             time.Now,
	}
}

// RegisterDetector adds a detector to the monitoring cycle.
func (c *Coordinator) RegisterDetector(d detector.Detector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detectors = append(c.detectors, d)
	c.detectorStatus[d.Name()] = "registered"
	log.Printf("Registered detector: %s", d.Name())
}

// SetPublisher attaches the event bus. Optional.
func (c *Coordinator) SetPublisher(p AlertPublisher) { c.publisher = p }

// SetArchiver attaches the persistent alert archive. Optional.
func (c *Coordinator) SetArchiver(a AlertArchiver) { c.archiver = a }

// SetRetention overrides the 24h alert retention window.
func (c *Coordinator) SetRetention(d time.Duration) {
	if d > 0 {
		c.retention = d
	}
}

// SetHistoryLimit overrides the 100-cycle history bound.
func (c *Coordinator) SetHistoryLimit(n int) {
	if n > 0 {
		c.historyLimit = n
	}
}

// SetDetectorTimeout overrides the per-detector scan timeout.
func (c *Coordinator) SetDetectorTimeout(d time.Duration) {
	if d > 0 {
		c.detectorTimeout = d
	}
}

// SetNowFunc overrides the clock. Used by tests.
func (c *Coordinator) SetNowFunc(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

type scanResult struct {
	findings []models.Finding
	err      error
}

// RunCycle executes one complete monitoring cycle: scan every detector,
// fold the findings through admission, respond to high-confidence alerts,
// and prune bounded state. At most one cycle runs at a time; an
// overlapping call returns ErrCycleInProgress without touching state.
func (c *Coordinator) RunCycle(ctx context.Context) (models.CycleRecord, error) {
	if !c.cycleInFlight.CompareAndSwap(false, true) {
		return models.CycleRecord{}, ErrCycleInProgress
	}
	defer c.cycleInFlight.Store(false)

	start := c.now()

	c.mu.Lock()
	detectors := make([]detector.Detector, len(c.detectors))
	copy(detectors, c.detectors)
	c.mu.Unlock()

	results := c.scanDetectors(ctx, detectors)

	// Fold findings in registration order so admission order is stable.
	var findings []models.Finding
	detectorResults := make(map[string]models.DetectorResult, len(detectors))
	for i, d := range detectors {
		r := results[i]
		if r.err != nil {
			detectorResults[d.Name()] = models.DetectorResult{Error: r.err.Error()}
			log.Printf("Detector %s failed: %v", d.Name(), r.err)
			continue
		}
		detectorResults[d.Name()] = models.DetectorResult{Findings: len(r.findings)}
		findings = append(findings, r.findings...)
	}

	admissionNow := c.now()

	c.mu.Lock()
	for name, result := range detectorResults {
		if result.Error != "" {
			c.detectorStatus[name] = result.Error
		} else {
			c.detectorStatus[name] = "ok"
		}
	}

	recent := c.alertsSinceLocked(admissionNow.Add(-time.Hour))
	admitted := admission.Admit(recent, findings,
		admission.Config{MaxAlertsPerHour: c.settings.MaxAlertsPerHour}, admissionNow)

	snapshots := make([]*models.Alert, 0, len(admitted))
	for _, f := range admitted {
		alert := models.NewAlert(f, admissionNow)
		c.alerts = append(c.alerts, alert)
		snapshots = append(snapshots, alert.Clone())
	}

	c.pruneLocked(admissionNow)

	record := models.CycleRecord{
		StartedAt:      start,
		Duration:       c.now().Sub(start),
		Detectors:      detectorResults,
		AlertsAdmitted: len(snapshots),
	}
	c.history = append(c.history, record)
	if len(c.history) > c.historyLimit {
		c.history = c.history[len(c.history)-c.historyLimit:]
	}

	threshold := c.settings.AlertThreshold
	autoResponse := c.settings.AutoResponse
	c.mu.Unlock()

	for _, snap := range snapshots {
		c.publishAlert(ctx, snap)
	}

	if autoResponse {
		for _, snap := range snapshots {
			if snap.Confidence <= threshold {
				continue
			}
			c.respond(ctx, snap)
		}
	}

	log.Printf("Monitoring cycle completed in %s (%d findings, %d admitted)",
		record.Duration, len(findings), record.AlertsAdmitted)

	return record, nil
}

// scanDetectors runs every detector concurrently under its own timeout. A
// detector that errors, panics, or hangs contributes an error result and
// never aborts the cycle for the others.
func (c *Coordinator) scanDetectors(ctx context.Context, detectors []detector.Detector) []scanResult {
	results := make([]scanResult, len(detectors))

	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d detector.Detector) {
			defer wg.Done()

			scanCtx, cancel := context.WithTimeout(ctx, c.detectorTimeout)
			defer cancel()

			done := make(chan scanResult, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- scanResult{err: fmt.Errorf("detector panicked: %v", r)}
					}
				}()
				findings, err := d.Scan(scanCtx)
				done <- scanResult{findings: findings, err: err}
			}()

			select {
			case r := <-done:
				results[i] = r
			case <-scanCtx.Done():
				results[i] = scanResult{err: fmt.Errorf("scan timed out after %s", c.detectorTimeout)}
			}
		}(i, d)
	}
	wg.Wait()

	return results
}

// respond plans and executes the automated actions for one newly admitted
// alert. Action failures are isolated per action.
func (c *Coordinator) respond(ctx context.Context, snap *models.Alert) {
	actions := response.Plan(snap)
	if len(actions) == 0 {
		return
	}

	for _, actionName := range actions {
		record := c.executor.Execute(ctx, actionName, snap)
		c.appendResponse(snap.ID, record)

		if c.publisher != nil {
			if err := c.publisher.PublishResponse(record); err != nil {
				log.Printf("Warning: failed to publish response record: %v", err)
			}
		}
	}

	c.archiveAlert(ctx, snap.ID)
}

// ManualResponse executes exactly one action against an existing alert,
// bypassing the automatic threshold gating. Returns ErrAlertNotFound for
// unknown ids; in that case no state is mutated.
func (c *Coordinator) ManualResponse(ctx context.Context, alertID, actionName string) (models.ResponseRecord, error) {
	snap := c.getAlertClone(alertID)
	if snap == nil {
		return models.ResponseRecord{}, ErrAlertNotFound
	}

	record := c.executor.Execute(ctx, actionName, snap)
	c.appendResponse(alertID, record)

	if c.publisher != nil {
		if err := c.publisher.PublishResponse(record); err != nil {
			log.Printf("Warning: failed to publish response record: %v", err)
		}
	}
	c.archiveAlert(ctx, alertID)

	return record, nil
}

// GetStatus returns a snapshot of coordinator state.
func (c *Coordinator) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	detectors := make(map[string]string, len(c.detectorStatus))
	for name, status := range c.detectorStatus {
		detectors[name] = status
	}

	status := Status{
		State:         c.state,
		Detectors:     detectors,
		ActiveAlerts:  len(c.alerts),
		RecentCycles:  len(c.history),
		Configuration: c.configurationLocked(),
	}

	if len(c.history) > 0 {
		last := c.history[len(c.history)-1]
		last.Detectors = copyDetectorResults(last.Detectors)
		status.LastCycle = &last
	}

	return status
}

// GetAlertHistory returns deep copies of alerts admitted within the window,
// oldest first.
func (c *Coordinator) GetAlertHistory(window time.Duration) []*models.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-window)
	alerts := make([]*models.Alert, 0)
	for _, a := range c.alerts {
		if a.AdmittedAt.After(cutoff) {
			alerts = append(alerts, a.Clone())
		}
	}

	return alerts
}

// UpdateConfiguration applies a partial settings patch. Only recognized
// keys with in-range values are applied; everything else is silently
// ignored. Returns the resulting configuration.
func (c *Coordinator) UpdateConfiguration(patch map[string]interface{}) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range patch {
		switch key {
		case "monitoring_interval":
			if seconds, ok := asFloat(value); ok && seconds > 0 {
				c.settings.MonitoringInterval = time.Duration(seconds * float64(time.Second))
				log.Printf("Updated configuration: monitoring_interval = %s", c.settings.MonitoringInterval)
			}
		case "alert_threshold":
			if threshold, ok := asFloat(value); ok && threshold >= 0 && threshold <= 1 {
				c.settings.AlertThreshold = threshold
				log.Printf("Updated configuration: alert_threshold = %.2f", threshold)
			}
		case "auto_response":
			if enabled, ok := value.(bool); ok {
				c.settings.AutoResponse = enabled
				log.Printf("Updated configuration: auto_response = %v", enabled)
			}
		case "max_alerts_per_hour":
			if max, ok := asFloat(value); ok && max > 0 {
				c.settings.MaxAlertsPerHour = int(max)
				log.Printf("Updated configuration: max_alerts_per_hour = %d", c.settings.MaxAlertsPerHour)
			}
		}
	}

	return c.configurationLocked()
}

// TightenInterval halves the monitoring interval down to a floor. Wired to
// the increase_monitoring response action.
func (c *Coordinator) TightenInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.settings.MonitoringInterval / 2
	if next < minMonitoringInterval {
		next = minMonitoringInterval
	}
	c.settings.MonitoringInterval = next

	return next
}

// Activate starts the periodic cycle loop. Calling Activate on an active
// coordinator is a no-op.
func (c *Coordinator) Activate() error {
	c.mu.Lock()
	if c.state == StateActive {
		c.mu.Unlock()
		return nil
	}
	c.state = StateActive
	interval := c.settings.MonitoringInterval

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.loopCancel = cancel
	c.loopDone = done
	c.mu.Unlock()

	go c.loop(ctx, interval, done)

	log.Printf("Defense monitoring activated (interval: %s)", interval)
	return nil
}

// Deactivate stops the cycle loop and waits for an in-flight cycle to
// finish. Idempotent.
func (c *Coordinator) Deactivate() error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return nil
	}
	c.state = StateReady
	cancel := c.loopCancel
	done := c.loopDone
	c.mu.Unlock()

	cancel()
	<-done

	log.Printf("Defense monitoring deactivated")
	return nil
}

// State returns the current coordinator state.
func (c *Coordinator) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Coordinator) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.RunCycle(ctx); err != nil {
				if errors.Is(err, ErrCycleInProgress) {
					log.Printf("Skipping cycle: previous cycle still running")
				} else {
					log.Printf("Monitoring cycle failed: %v", err)
				}
			}

			// Pick up interval changes from configuration updates or the
			// increase_monitoring action.
			c.mu.Lock()
			next := c.settings.MonitoringInterval
			c.mu.Unlock()
			if next != interval && next > 0 {
				interval = next
				ticker.Reset(interval)
				log.Printf("Monitoring interval now %s", interval)
			}
		}
	}
}

// appendResponse serialises appends to one alert's response list and
// advances its status. The alert may have been pruned since the caller's
// snapshot; that is not an error.
func (c *Coordinator) appendResponse(alertID string, record models.ResponseRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.alerts {
		if a.ID == alertID {
			a.Responses = append(a.Responses, record)
			a.Status = models.StatusResponded
			return
		}
	}
}

func (c *Coordinator) publishAlert(ctx context.Context, snap *models.Alert) {
	if c.publisher != nil {
		if err := c.publisher.PublishAlert(snap); err != nil {
			log.Printf("Warning: failed to publish alert %s: %v", snap.ID, err)
		}
	}

	if c.archiver != nil {
		if err := c.archiver.StoreAlert(ctx, snap, c.retention); err != nil {
			log.Printf("Warning: failed to archive alert %s: %v", snap.ID, err)
		}
	}
}

// archiveAlert re-stores an alert after its responses changed.
func (c *Coordinator) archiveAlert(ctx context.Context, alertID string) {
	if c.archiver == nil {
		return
	}

	snap := c.getAlertClone(alertID)
	if snap == nil {
		return
	}

	if err := c.archiver.StoreAlert(ctx, snap, c.retention); err != nil {
		log.Printf("Warning: failed to archive alert %s: %v", alertID, err)
	}
}

func (c *Coordinator) getAlertClone(alertID string) *models.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.alerts {
		if a.ID == alertID {
			return a.Clone()
		}
	}
	return nil
}

// alertsSinceLocked returns the alerts admitted after cutoff, oldest first.
// Caller holds the mutex.
func (c *Coordinator) alertsSinceLocked(cutoff time.Time) []*models.Alert {
	recent := make([]*models.Alert, 0)
	for _, a := range c.alerts {
		if a.AdmittedAt.After(cutoff) {
			recent = append(recent, a)
		}
	}
	return recent
}

// pruneLocked evicts alerts strictly older than the retention window. An
// alert exactly at the boundary is kept. Caller holds the mutex.
func (c *Coordinator) pruneLocked(now time.Time) {
	kept := c.alerts[:0]
	for _, a := range c.alerts {
		if now.Sub(a.AdmittedAt) <= c.retention {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(c.alerts); i++ {
		c.alerts[i] = nil
	}
	c.alerts = kept
}

// configurationLocked builds the externally visible configuration map.
// Caller holds the mutex.
func (c *Coordinator) configurationLocked() map[string]interface{} {
	return map[string]interface{}{
		"monitoring_interval": int(c.settings.MonitoringInterval / time.Second),
		"alert_threshold":     c.settings.AlertThreshold,
		"auto_response":       c.settings.AutoResponse,
		"max_alerts_per_hour": c.settings.MaxAlertsPerHour,
	}
}

func copyDetectorResults(in map[string]models.DetectorResult) map[string]models.DetectorResult {
	out := make(map[string]models.DetectorResult, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
