package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/autonmap/scan-orchestrator/entity"
	"github.com/autonmap/scan-orchestrator/infra"
	"github.com/autonmap/scan-orchestrator/infra/produce"
)

const sampleReport = `<nmaprun scanner="nmap"><host><address addr="192.0.2.10"/><ports><port portid="80"><state state="open"/></port></ports></host></nmaprun>`

type fakeStore struct {
	mu         sync.Mutex
	scan       *entity.Scan
	claimFails bool
}

func (s *fakeStore) FindByID(id uuid.UUID) (*entity.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scan == nil || s.scan.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	snapshot := *s.scan
	return &snapshot, nil
}

func (s *fakeStore) MarkRunning(id uuid.UUID, startedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimFails || s.scan.Status != entity.ScanStatusQueued {
		return false, nil
	}
	s.scan.Status = entity.ScanStatusRunning
	s.scan.StartedAt = &startedAt
	return true, nil
}

func (s *fakeStore) MarkSucceeded(id uuid.UUID, resultXML string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scan.Status = entity.ScanStatusSucceeded
	s.scan.ResultXML = &resultXML
	s.scan.FinishedAt = &finishedAt
	return nil
}

func (s *fakeStore) MarkFailed(id uuid.UUID, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scan.Status = entity.ScanStatusFailed
	s.scan.FinishedAt = &finishedAt
	return nil
}

type fakeExecutor struct {
	mu     sync.Mutex
	calls  int
	report []byte
	exit   int
	err    error
	panics bool
}

func (e *fakeExecutor) Run(ctx context.Context, scanID uuid.UUID, profile string, targets []string, ports *string, timing string) ([]byte, int, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.panics {
		panic("executor blew up")
	}
	return e.report, e.exit, e.err
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeNotifier struct {
	mu        sync.Mutex
	endpoints []string
	payloads  []infra.WebhookPayload
}

func (n *fakeNotifier) Notify(ctx context.Context, endpoint string, payload infra.WebhookPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endpoints = append(n.endpoints, endpoint)
	n.payloads = append(n.payloads, payload)
	return nil
}

type fakeLocker struct {
	denied   bool
	acquired int
	released int
}

func (l *fakeLocker) AcquireScanLock(ctx context.Context, scanID string, ttl time.Duration) (bool, error) {
	l.acquired++
	return !l.denied, nil
}

func (l *fakeLocker) ReleaseScanLock(ctx context.Context, scanID string) error {
	l.released++
	return nil
}

func newTestConsumer(store *fakeStore, exec *fakeExecutor, notifier *fakeNotifier, locker *fakeLocker) *ScanConsumer {
	return &ScanConsumer{
		store:    store,
		executor: exec,
		notifier: notifier,
		locker:   locker,
		logger:   infra.NewConsoleLogger(),
		workers:  1,
		lockTTL:  time.Minute,
	}
}

func queuedScan(callback *string) *entity.Scan {
	return &entity.Scan{
		ID:             uuid.New(),
		Status:         entity.ScanStatusQueued,
		Profile:        entity.ProfileBasicVersionDetection,
		Targets:        datatypes.NewJSONSlice([]string{"192.0.2.10"}),
		TimingTemplate: entity.DefaultTimingTemplate,
		CallbackURL:    callback,
		CreatedAt:      time.Now().UTC(),
	}
}

func taskFor(scan *entity.Scan) produce.ScanTaskMessage {
	return produce.ScanTaskMessage{
		ScanID:         scan.ID.String(),
		Targets:        []string(scan.Targets),
		Profile:        scan.Profile,
		Ports:          scan.Ports,
		TimingTemplate: scan.TimingTemplate,
		CallbackURL:    scan.CallbackURL,
	}
}

func TestProcessSuccess(t *testing.T) {
	t.Parallel()
	callback := "http://callbacks.example/hook"
	store := &fakeStore{scan: queuedScan(&callback)}
	exec := &fakeExecutor{report: []byte(sampleReport)}
	notifier := &fakeNotifier{}
	locker := &fakeLocker{}
	c := newTestConsumer(store, exec, notifier, locker)

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Equal(t, 1, exec.callCount())
	require.Equal(t, entity.ScanStatusSucceeded, store.scan.Status)
	require.NotNil(t, store.scan.StartedAt)
	require.NotNil(t, store.scan.FinishedAt)
	require.NotNil(t, store.scan.ResultXML)
	require.Equal(t, sampleReport, *store.scan.ResultXML)

	require.Len(t, notifier.payloads, 1)
	payload := notifier.payloads[0]
	require.Equal(t, callback, notifier.endpoints[0])
	require.Equal(t, store.scan.ID.String(), payload.ID)
	require.Equal(t, entity.ScanStatusSucceeded, payload.Status)
	require.Equal(t, []string{"192.0.2.10"}, payload.Targets)
	require.NotNil(t, payload.Result)
	require.Contains(t, payload.Result, "nmaprun")

	require.Equal(t, 1, locker.acquired)
	require.Equal(t, 1, locker.released)
}

func TestProcessNonZeroExitStillSucceeds(t *testing.T) {
	t.Parallel()
	store := &fakeStore{scan: queuedScan(nil)}
	exec := &fakeExecutor{report: []byte(sampleReport), exit: 1}
	c := newTestConsumer(store, exec, &fakeNotifier{}, &fakeLocker{})

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Equal(t, entity.ScanStatusSucceeded, store.scan.Status)
	require.NotNil(t, store.scan.ResultXML)
}

func TestProcessExecutorFailure(t *testing.T) {
	t.Parallel()
	callback := "http://callbacks.example/hook"
	store := &fakeStore{scan: queuedScan(&callback)}
	exec := &fakeExecutor{err: context.DeadlineExceeded}
	notifier := &fakeNotifier{}
	c := newTestConsumer(store, exec, notifier, &fakeLocker{})

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Equal(t, entity.ScanStatusFailed, store.scan.Status)
	require.Nil(t, store.scan.ResultXML)
	require.NotNil(t, store.scan.FinishedAt)

	// Failed scans still notify, without a result.
	require.Len(t, notifier.payloads, 1)
	require.Equal(t, entity.ScanStatusFailed, notifier.payloads[0].Status)
	require.Nil(t, notifier.payloads[0].Result)
}

func TestProcessPanicBecomesFailure(t *testing.T) {
	t.Parallel()
	store := &fakeStore{scan: queuedScan(nil)}
	exec := &fakeExecutor{panics: true}
	c := newTestConsumer(store, exec, &fakeNotifier{}, &fakeLocker{})

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Equal(t, entity.ScanStatusFailed, store.scan.Status)
	require.NotNil(t, store.scan.FinishedAt)
	require.Nil(t, store.scan.ResultXML)
}

func TestProcessRedeliveryAfterTerminalIsNoop(t *testing.T) {
	t.Parallel()
	store := &fakeStore{scan: queuedScan(nil)}
	store.scan.Status = entity.ScanStatusSucceeded
	resultXML := sampleReport
	store.scan.ResultXML = &resultXML
	exec := &fakeExecutor{report: []byte(sampleReport)}
	notifier := &fakeNotifier{}
	c := newTestConsumer(store, exec, notifier, &fakeLocker{})

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Zero(t, exec.callCount(), "terminal scan must not execute again")
	require.Empty(t, notifier.payloads)
}

func TestProcessRedeliveryWhileRunningIsNoop(t *testing.T) {
	t.Parallel()
	store := &fakeStore{scan: queuedScan(nil)}
	store.scan.Status = entity.ScanStatusRunning
	exec := &fakeExecutor{report: []byte(sampleReport)}
	c := newTestConsumer(store, exec, &fakeNotifier{}, &fakeLocker{})

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Zero(t, exec.callCount())
	require.Equal(t, entity.ScanStatusRunning, store.scan.Status)
}

func TestProcessLockDeniedSkipsExecution(t *testing.T) {
	t.Parallel()
	store := &fakeStore{scan: queuedScan(nil)}
	exec := &fakeExecutor{report: []byte(sampleReport)}
	c := newTestConsumer(store, exec, &fakeNotifier{}, &fakeLocker{denied: true})

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Zero(t, exec.callCount())
	require.Equal(t, entity.ScanStatusQueued, store.scan.Status)
}

func TestProcessClaimLostSkipsExecution(t *testing.T) {
	t.Parallel()
	store := &fakeStore{scan: queuedScan(nil), claimFails: true}
	exec := &fakeExecutor{report: []byte(sampleReport)}
	c := newTestConsumer(store, exec, &fakeNotifier{}, &fakeLocker{})

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Zero(t, exec.callCount())
}

func TestProcessUnknownScanDropped(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	exec := &fakeExecutor{report: []byte(sampleReport)}
	c := newTestConsumer(store, exec, &fakeNotifier{}, &fakeLocker{})

	c.process(context.Background(), uuid.New(), produce.ScanTaskMessage{ScanID: uuid.NewString()})

	require.Zero(t, exec.callCount())
}

func TestProcessNoCallbackNoNotify(t *testing.T) {
	t.Parallel()
	store := &fakeStore{scan: queuedScan(nil)}
	exec := &fakeExecutor{report: []byte(sampleReport)}
	notifier := &fakeNotifier{}
	c := newTestConsumer(store, exec, notifier, &fakeLocker{})

	c.process(context.Background(), store.scan.ID, taskFor(store.scan))

	require.Equal(t, entity.ScanStatusSucceeded, store.scan.Status)
	require.Empty(t, notifier.payloads)
}
