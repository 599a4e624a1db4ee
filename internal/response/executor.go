package response

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/networkbuster/aidefense/internal/models"
)

// Executor performs response actions with per-action isolation. Its
// contract: always return a result record, never panic past its boundary,
// never run an action longer than the configured timeout.
type Executor struct {
	actions map[string]Action
	timeout time.Duration
}

func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		actions: make(map[string]Action),
		timeout: timeout,
	}
}

// Register adds an action to the executor's registry, replacing any action
// with the same name.
func (e *Executor) Register(action Action) {
	e.actions[action.Name()] = action
	log.Printf("Registered response action: %s", action.Name())
}

// RegisteredActions returns the names of all registered actions.
func (e *Executor) RegisteredActions() []string {
	names := make([]string, 0, len(e.actions))
	for name := range e.actions {
		names = append(names, name)
	}
	return names
}

// Execute runs one action against one alert and returns its record. A
// missing action, an action error, a timeout, or a panic inside the action
// all yield a failed outcome rather than an error.
func (e *Executor) Execute(ctx context.Context, actionName string, alert *models.Alert) models.ResponseRecord {
	started := time.Now()

	record := models.ResponseRecord{
		Action:    actionName,
		AlertID:   alert.ID,
		Timestamp: started.UTC(),
	}

	action, exists := e.actions[actionName]
	if !exists {
		record.Outcome = models.OutcomeFailed
		record.Error = fmt.Sprintf("unknown action: %s", actionName)
		log.Printf("Response action unknown: %s (alert: %s)", actionName, alert.ID)
		return record
	}

	actionCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("action panicked: %v", r)
			}
		}()
		errChan <- action.Execute(actionCtx, alert)
	}()

	var err error
	select {
	case err = <-errChan:
	case <-actionCtx.Done():
		err = fmt.Errorf("action timed out after %s", e.timeout)
	}

	record.ExecutionTimeMs = time.Since(started).Milliseconds()

	if err != nil {
		record.Outcome = models.OutcomeFailed
		record.Error = err.Error()
		log.Printf("Response action failed: %s for alert %s: %v", actionName, alert.ID, err)
		return record
	}

	record.Outcome = models.OutcomeExecuted
	log.Printf("Executed response action: %s for alert %s (%dms)",
		actionName, alert.ID, record.ExecutionTimeMs)
	return record
}
