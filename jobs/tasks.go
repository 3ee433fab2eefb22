package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRecurringProcess fires due recurring invoice profiles.
	TaskRecurringProcess = "ledger:recurring:process"
	// TaskReconcileAuto matches open bank lines against invoices and expenses.
	TaskReconcileAuto = "ledger:reconcile:auto"
	// TaskFraudScan runs the fraud heuristics and reports alerts.
	TaskFraudScan = "ledger:fraud:scan"
	// TaskGLIntegrity verifies that the ledger balances.
	TaskGLIntegrity = "ledger:gl:integrity"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RedisOpt builds the asynq connection from the same REDIS_ADDR forms the
// report cache accepts.
func RedisOpt(addr string) (asynq.RedisClientOpt, error) {
	opts, err := cache.ParseOptions(addr)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// TaskTypes lists every task the worker handles.
func TaskTypes() []string {
	return []string{TaskRecurringProcess, TaskReconcileAuto, TaskFraudScan, TaskGLIntegrity}
}

// CompanyPayload scopes a task to one company; zero means every company.
type CompanyPayload struct {
	CompanyID int64   `json:"company_id"`
	Threshold float64 `json:"threshold,omitempty"`
}

// NewTask builds a ledger task of the given type.
func NewTask(taskType string, payload CompanyPayload) (*asynq.Task, error) {
	known := false
	for _, t := range TaskTypes() {
		if t == taskType {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// decodePayload reads a CompanyPayload. Empty payloads are valid; malformed
// ones are not retried.
func decodePayload(t *asynq.Task) (CompanyPayload, error) {
	var payload CompanyPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("jobs: decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.CompanyID < 0 {
		return payload, fmt.Errorf("jobs: negative company id: %w", asynq.SkipRetry)
	}
	return payload, nil
}
