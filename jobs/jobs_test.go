package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/fraud"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/reconcile"
	"github.com/odyssey-erp/odyssey-ledger/internal/recurring"
)

func task(t *testing.T, taskType string, payload CompanyPayload) *asynq.Task {
	t.Helper()
	tk, err := NewTask(taskType, payload)
	require.NoError(t, err)
	return tk
}

func metrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestNewTaskRejectsUnknownType(t *testing.T) {
	_, err := NewTask("mail:send", CompanyPayload{})
	require.Error(t, err)
}

func TestRedisOptCarriesURLCredentials(t *testing.T) {
	opt, err := RedisOpt("redis://:secret@cache:6380/4")
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opt.Addr)
	require.Equal(t, "secret", opt.Password)
	require.Equal(t, 4, opt.DB)

	opt, err = RedisOpt("localhost:6379")
	require.NoError(t, err)
	require.Equal(t, asynq.RedisClientOpt{Addr: "localhost:6379"}, opt)
}

func TestDecodePayloadSkipsRetryOnGarbage(t *testing.T) {
	_, err := decodePayload(asynq.NewTask(TaskFraudScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	p, err := decodePayload(asynq.NewTask(TaskFraudScan, nil))
	require.NoError(t, err)
	require.Zero(t, p.CompanyID)
}

type recurringStub struct {
	companyID int64
	result    recurring.Result
}

func (s *recurringStub) ProcessDueProfiles(_ context.Context, companyID int64) (recurring.Result, error) {
	s.companyID = companyID
	return s.result, nil
}

func TestRecurringJobPassesCompanyScope(t *testing.T) {
	stub := &recurringStub{result: recurring.Result{Processed: 2, InvoicesCreated: []recurring.Created{{ProfileID: 1}}, Failed: []recurring.Failure{{ProfileID: 2}}}}
	job := &RecurringJob{Service: stub, Metrics: metrics()}
	require.NoError(t, job.Handle(context.Background(), task(t, TaskRecurringProcess, CompanyPayload{CompanyID: 4})))
	require.EqualValues(t, 4, stub.companyID)
}

type reconcilerStub struct {
	seen []int64
	fail int64
}

func (s *reconcilerStub) AutoReconcile(_ context.Context, companyID int64, _ float64) (reconcile.Result, error) {
	s.seen = append(s.seen, companyID)
	if companyID == s.fail {
		return reconcile.Result{}, errors.New("db down")
	}
	return reconcile.Result{Matched: 1}, nil
}

type listerStub []int64

func (l listerStub) ActiveIDs(context.Context) ([]int64, error) { return l, nil }

func TestReconcileJobFansOutAndContinuesPastFailures(t *testing.T) {
	stub := &reconcilerStub{fail: 2}
	job := &ReconcileJob{Service: stub, Companies: listerStub{1, 2, 3}, Metrics: metrics()}
	err := job.Handle(context.Background(), task(t, TaskReconcileAuto, CompanyPayload{}))
	require.Error(t, err)
	require.Equal(t, []int64{1, 2, 3}, stub.seen)

	single := &reconcilerStub{}
	job = &ReconcileJob{Service: single, Metrics: metrics()}
	require.NoError(t, job.Handle(context.Background(), task(t, TaskReconcileAuto, CompanyPayload{CompanyID: 9})))
	require.Equal(t, []int64{9}, single.seen)
}

type analyzerStub []fraud.Alert

func (a analyzerStub) Analyze(context.Context, int64) ([]fraud.Alert, error) { return a, nil }

func TestFraudScanJobReportsAlerts(t *testing.T) {
	job := &FraudScanJob{Detector: analyzerStub{
		{Type: fraud.AlertDuplicate, Severity: fraud.SeverityHigh, CompanyID: 1, SourceIDs: []int64{1, 2}},
	}, Metrics: metrics()}
	require.NoError(t, job.Handle(context.Background(), task(t, TaskFraudScan, CompanyPayload{})))
}

type integrityStub map[int64]reports.Integrity

func (s integrityStub) CheckIntegrity(_ context.Context, companyID int64, _ time.Time) (reports.Integrity, error) {
	report, ok := s[companyID]
	if !ok {
		return reports.Integrity{}, errors.New("no ledger")
	}
	return report, nil
}

func TestGLIntegrityJobToleratesViolations(t *testing.T) {
	job := &GLIntegrityJob{
		Ledger: integrityStub{
			1: {Balanced: true},
			2: {Balanced: false, Difference: 3, UnbalancedJournals: []int64{7}},
		},
		Companies: listerStub{1, 2},
		Metrics:   metrics(),
	}
	require.NoError(t, job.Handle(context.Background(), task(t, TaskGLIntegrity, CompanyPayload{})))

	job.Companies = listerStub{5}
	require.Error(t, job.Handle(context.Background(), task(t, TaskGLIntegrity, CompanyPayload{})))
}

func TestUnconfiguredHandlersFail(t *testing.T) {
	var job *FraudScanJob
	require.Error(t, job.Handle(context.Background(), task(t, TaskFraudScan, CompanyPayload{})))
	require.Error(t, (&GLIntegrityJob{Ledger: integrityStub{}}).Handle(context.Background(), task(t, TaskGLIntegrity, CompanyPayload{})))
}

type inspectorStub struct {
	info *asynq.QueueInfo
	err  error
}

func (s inspectorStub) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestJobsHealth(t *testing.T) {
	serve := func(inspector QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	ok := serve(inspectorStub{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Failed: 1}})
	require.Equal(t, http.StatusOK, ok.Code)
	require.JSONEq(t, `{"success":true,"data":{"queue":"default","pending":3,"active":0,"retry":0,"archived":0,"processed":0,"failed":1}}`, ok.Body.String())

	down := serve(inspectorStub{err: errors.New("redis down")})
	require.Equal(t, http.StatusServiceUnavailable, down.Code)

	none := serve(nil)
	require.Equal(t, http.StatusOK, none.Code)
}
