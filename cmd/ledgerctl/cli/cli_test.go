package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

type stubEnqueuer struct {
	tasks  []*asynq.Task
	closed bool
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error {
	s.closed = true
	return nil
}

type stubInspector struct {
	info      *asynq.QueueInfo
	scheduled []*asynq.TaskInfo
	err       error
}

func (s *stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s *stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return s.scheduled, s.err
}

func (s *stubInspector) Close() error { return nil }

func run(t *testing.T, jc *JobsCLI, args ...string) (string, error) {
	t.Helper()
	opts := &rootOptions{
		newJobs: func(string) *JobsCLI { return jc },
		connect: func(context.Context, string) (*pgxpool.Pool, error) {
			return nil, errors.New("no database in tests")
		},
	}
	cmd := newRootCommand(opts)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestJobsTriggerEnqueuesPayload(t *testing.T) {
	enq := &stubEnqueuer{}
	out, err := run(t, &JobsCLI{client: enq}, "jobs", "trigger", jobs.TaskReconcileAuto, "--company", "7", "--threshold", "0.9")
	require.NoError(t, err)
	require.Contains(t, out, "enqueued ledger:reconcile:auto id=t-1")
	require.True(t, enq.closed)

	require.Len(t, enq.tasks, 1)
	var payload jobs.CompanyPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, jobs.CompanyPayload{CompanyID: 7, Threshold: 0.9}, payload)
}

func TestJobsTriggerRejectsUnknownTask(t *testing.T) {
	enq := &stubEnqueuer{}
	_, err := run(t, &JobsCLI{client: enq}, "jobs", "trigger", "mail:send")
	require.Error(t, err)
	require.Empty(t, enq.tasks)
}

func TestJobsInspect(t *testing.T) {
	jc := &JobsCLI{inspector: &stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 4, Retry: 1}}}
	out, err := run(t, jc, "jobs", "inspect")
	require.NoError(t, err)
	require.Contains(t, out, "PENDING")
	require.Regexp(t, `default\s+4\s+0\s+0\s+1\s+0`, out)
}

func TestJobsScheduled(t *testing.T) {
	next := time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC)
	jc := &JobsCLI{inspector: &stubInspector{scheduled: []*asynq.TaskInfo{{ID: "a", Type: jobs.TaskRecurringProcess, NextProcessAt: next}}}}
	out, err := run(t, jc, "jobs", "scheduled")
	require.NoError(t, err)
	require.Contains(t, out, "a ledger:recurring:process next=2024-03-01T00:30:00Z")

	out, err = run(t, &JobsCLI{inspector: &stubInspector{}}, "jobs", "scheduled")
	require.NoError(t, err)
	require.Contains(t, out, "No scheduled tasks.")
}

func TestJobsCLIWithoutClients(t *testing.T) {
	var jc *JobsCLI
	_, err := jc.Trigger(context.Background(), jobs.TaskFraudScan, jobs.CompanyPayload{})
	require.Error(t, err)
	_, err = (&JobsCLI{}).InspectQueue()
	require.Error(t, err)
}

func TestCOAInitRequiresCompany(t *testing.T) {
	_, err := run(t, &JobsCLI{}, "coa", "init")
	require.ErrorContains(t, err, "--company is required")
}

func TestDatabaseCommandsSurfaceConnectErrors(t *testing.T) {
	_, err := run(t, &JobsCLI{}, "companies", "create", "Acme")
	require.ErrorContains(t, err, "no database")
	_, err = run(t, &JobsCLI{}, "migrate")
	require.ErrorContains(t, err, "no database")
}
