package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/events"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/payment"
)

// memStore is an in-memory stand-in for the workflow tables. RunInTx holds the store lock for
// the whole transaction and restores a snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	tuitions map[string]models.Tuition
	apps     map[string]models.Application
	payments map[string]models.Payment

	failAfterApprove error
	txCount          int
}

func newMemStore() *memStore {
	return &memStore{
		tuitions: make(map[string]models.Tuition),
		apps:     make(map[string]models.Application),
		payments: make(map[string]models.Payment),
	}
}

func (m *memStore) addTuition(owner string, status models.TuitionStatus) models.Tuition {
	t := models.Tuition{ID: uuid.NewString(), StudentEmail: owner, Subject: "Mathematics", ClassLevel: "Grade 9", Status: status}
	m.tuitions[t.ID] = t
	return t
}

func (m *memStore) addApplication(tuitionID, tutorEmail string, status models.ApplicationStatus) models.Application {
	a := models.Application{ID: uuid.NewString(), TuitionID: tuitionID, TutorEmail: tutorEmail, TutorName: "Tutor " + tutorEmail, Status: status}
	m.apps[a.ID] = a
	return a
}

func (m *memStore) tuition(id string) models.Tuition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tuitions[id]
}

func (m *memStore) app(id string) models.Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apps[id]
}

func (m *memStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *memStore) approvedCount(tuitionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.apps {
		if a.TuitionID == tuitionID && a.Status == models.ApplicationStatusApproved {
			n++
		}
	}
	return n
}

func (m *memStore) RunInTx(ctx context.Context, fn func(repository.WorkflowTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	tuitions := make(map[string]models.Tuition, len(m.tuitions))
	for k, v := range m.tuitions {
		tuitions[k] = v
	}
	apps := make(map[string]models.Application, len(m.apps))
	for k, v := range m.apps {
		apps[k] = v
	}
	payments := make(map[string]models.Payment, len(m.payments))
	for k, v := range m.payments {
		payments[k] = v
	}

	if err := fn(&memTx{m: m}); err != nil {
		m.tuitions, m.apps, m.payments = tuitions, apps, payments
		return err
	}
	return nil
}

type memTx struct{ m *memStore }

func (t *memTx) LockTuition(ctx context.Context, id string) (*models.Tuition, error) {
	tu, ok := t.m.tuitions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tu, nil
}

func (t *memTx) LockApplication(ctx context.Context, id string) (*models.Application, error) {
	a, ok := t.m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (t *memTx) AssignTuition(ctx context.Context, id string) error {
	tu, ok := t.m.tuitions[id]
	if !ok || tu.Status == models.TuitionStatusAssigned {
		return repository.ErrStaleState
	}
	tu.Status = models.TuitionStatusAssigned
	t.m.tuitions[id] = tu
	return nil
}

func (t *memTx) SetApplicationStatus(ctx context.Context, id string, from, to models.ApplicationStatus) error {
	a, ok := t.m.apps[id]
	if !ok || a.Status != from {
		return repository.ErrStaleState
	}
	if to == models.ApplicationStatusApproved {
		for _, other := range t.m.apps {
			if other.TuitionID == a.TuitionID && other.Status == models.ApplicationStatusApproved {
				return repository.ErrDuplicate
			}
		}
	}
	a.Status = to
	t.m.apps[id] = a
	if to == models.ApplicationStatusApproved && t.m.failAfterApprove != nil {
		return t.m.failAfterApprove
	}
	return nil
}

func (t *memTx) RejectSiblings(ctx context.Context, tuitionID, keepID string) (int64, error) {
	var n int64
	for id, a := range t.m.apps {
		if a.TuitionID == tuitionID && id != keepID && a.Status == models.ApplicationStatusPending {
			a.Status = models.ApplicationStatusRejected
			t.m.apps[id] = a
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertPayment(ctx context.Context, p *models.Payment) (bool, error) {
	if _, ok := t.m.payments[p.TransactionID]; ok {
		return false, nil
	}
	p.ID = uuid.NewString()
	p.PaidAt = time.Now().UTC()
	t.m.payments[p.TransactionID] = *p
	return true, nil
}

func (t *memTx) FindPaymentByTransactionID(ctx context.Context, id string) (*models.Payment, error) {
	p, ok := t.m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

type memApplications struct{ m *memStore }

func (r memApplications) Create(ctx context.Context, app *models.Application) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.apps {
		if a.TuitionID == app.TuitionID && a.TutorEmail == app.TutorEmail && a.Status == models.ApplicationStatusPending {
			return repository.ErrDuplicate
		}
	}
	app.ID = uuid.NewString()
	app.Status = models.ApplicationStatusPending
	r.m.apps[app.ID] = *app
	return nil
}

func (r memApplications) FindByID(ctx context.Context, id string) (*models.Application, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (r memApplications) HasPending(ctx context.Context, tuitionID, tutorEmail string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.apps {
		if a.TuitionID == tuitionID && a.TutorEmail == tutorEmail && a.Status == models.ApplicationStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r memApplications) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Application
	for _, a := range r.m.apps {
		if filter.TutorEmail != "" && a.TutorEmail != filter.TutorEmail {
			continue
		}
		if filter.TuitionID != "" && a.TuitionID != filter.TuitionID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r memApplications) Update(ctx context.Context, id string, patch models.ApplicationPatch) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.apps[id]
	if !ok || a.Status == models.ApplicationStatusApproved {
		return repository.ErrStaleState
	}
	if patch.TutorName != nil {
		a.TutorName = *patch.TutorName
	}
	if patch.ExpectedSalary != nil {
		a.ExpectedSalary = *patch.ExpectedSalary
	}
	r.m.apps[id] = a
	return nil
}

func (r memApplications) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.apps[id]
	if !ok || a.Status == models.ApplicationStatusApproved {
		return repository.ErrStaleState
	}
	delete(r.m.apps, id)
	return nil
}

type memTuitions struct{ m *memStore }

func (r memTuitions) FindByID(ctx context.Context, id string) (*models.Tuition, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tuitions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

type memPayments struct{ m *memStore }

func (r memPayments) FindByTransactionID(ctx context.Context, id string) (*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

type gatewayStub struct {
	mu       sync.Mutex
	sessions map[string]*payment.SessionDetails
	requests []payment.SessionRequest
	err      error
}

func (g *gatewayStub) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	ref := "TUI-" + uuid.NewString()
	g.sessions[ref] = &payment.SessionDetails{Reference: ref, PaymentStatus: payment.StatusOpen, AmountTotal: req.Amount, Currency: "IDR", Metadata: req.Metadata}
	return &payment.Session{Reference: ref, CheckoutURL: "https://pay.example/" + ref}, nil
}

func (g *gatewayStub) RetrieveSession(ctx context.Context, ref string) (*payment.SessionDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	d, ok := g.sessions[ref]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	copy := *d
	return &copy, nil
}

func (g *gatewayStub) complete(ref, transactionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[ref].PaymentStatus = payment.StatusCompleted
	g.sessions[ref].PaymentIntentID = transactionID
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, event string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == event {
			n++
		}
	}
	return n
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type workflowFixture struct {
	store     *memStore
	gateway   *gatewayStub
	publisher *recordingPublisher
	metrics   *MetricsService
	svc       *WorkflowService
}

func newWorkflowFixture() *workflowFixture {
	store := newMemStore()
	gw := &gatewayStub{sessions: make(map[string]*payment.SessionDetails)}
	pub := &recordingPublisher{}
	metrics := NewMetricsService()
	svc := NewWorkflowService(memApplications{store}, memTuitions{store}, memPayments{store}, store, gw,
		WorkflowConfig{Currency: "IDR", ServerKey: "server-key"}, nil,
		WithPublisher(pub), WithMetrics(metrics))
	return &workflowFixture{store: store, gateway: gw, publisher: pub, metrics: metrics, svc: svc}
}

var (
	student = &models.JWTClaims{UserID: "s-1", Email: "student@example.com", Name: "Sari Student", Role: models.RoleStudent}
	tutor1  = &models.JWTClaims{UserID: "t-1", Email: "tutor1@example.com", Role: models.RoleTutor}
	admin   = &models.JWTClaims{UserID: "a-1", Email: "admin@example.com", Role: models.RoleAdmin}
)

func TestApproveRejectsSiblingsAndAssignsTuition(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	a1 := f.store.addApplication(tu.ID, "tutor1@example.com", models.ApplicationStatusPending)
	a2 := f.store.addApplication(tu.ID, "tutor2@example.com", models.ApplicationStatusPending)

	result, err := f.svc.ApproveApplication(context.Background(), a1.ID, student)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, int64(1), result.RejectedSiblings)

	assert.Equal(t, models.ApplicationStatusApproved, f.store.app(a1.ID).Status)
	assert.Equal(t, models.ApplicationStatusRejected, f.store.app(a2.ID).Status)
	assert.Equal(t, models.TuitionStatusAssigned, f.store.tuition(tu.ID).Status)
	assert.Equal(t, 1, f.publisher.count(events.ApplicationApproved))
}

func TestApproveTwiceIsAlreadyProcessed(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	a1 := f.store.addApplication(tu.ID, "tutor1@example.com", models.ApplicationStatusPending)

	_, err := f.svc.ApproveApplication(context.Background(), a1.ID, student)
	require.NoError(t, err)
	txBefore := f.store.txCount

	result, err := f.svc.ApproveApplication(context.Background(), a1.ID, admin)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, "application already processed", result.Message)
	assert.Equal(t, txBefore, f.store.txCount)
	assert.Equal(t, 1, f.publisher.count(events.ApplicationApproved))
	assert.Equal(t, uint64(1), f.metrics.Snapshot().WorkflowOutcomes["approve."+OutcomeAlreadyProcessed])
}

func TestApproveRequiresTuitionOwner(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	a1 := f.store.addApplication(tu.ID, "tutor1@example.com", models.ApplicationStatusPending)

	_, err := f.svc.ApproveApplication(context.Background(), a1.ID, &models.JWTClaims{Email: "other@example.com", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.ApproveApplication(context.Background(), "missing", student)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestApproveRollsBackWhenSequenceFails(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	a1 := f.store.addApplication(tu.ID, "tutor1@example.com", models.ApplicationStatusPending)
	a2 := f.store.addApplication(tu.ID, "tutor2@example.com", models.ApplicationStatusPending)
	f.store.failAfterApprove = errors.New("connection reset")

	_, err := f.svc.ApproveApplication(context.Background(), a1.ID, student)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	assert.Equal(t, models.ApplicationStatusPending, f.store.app(a1.ID).Status)
	assert.Equal(t, models.ApplicationStatusPending, f.store.app(a2.ID).Status)
	assert.Equal(t, models.TuitionStatusActive, f.store.tuition(tu.ID).Status)
	assert.Zero(t, f.publisher.count(events.ApplicationApproved))
}

func TestConcurrentApprovalsApproveExactlyOne(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	var ids []string
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		ids = append(ids, f.store.addApplication(tu.ID, email, models.ApplicationStatusPending).ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.ApproveApplication(context.Background(), id, student)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, f.store.approvedCount(tu.ID))
	assert.Equal(t, models.TuitionStatusAssigned, f.store.tuition(tu.ID).Status)
	assert.Equal(t, 1, f.publisher.count(events.ApplicationApproved))
}

func TestRejectSemantics(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	a1 := f.store.addApplication(tu.ID, "tutor1@example.com", models.ApplicationStatusPending)
	approved := f.store.addApplication(tu.ID, "tutor2@example.com", models.ApplicationStatusApproved)

	result, err := f.svc.RejectApplication(context.Background(), a1.ID, student)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.ApplicationStatusRejected, f.store.app(a1.ID).Status)

	result, err = f.svc.RejectApplication(context.Background(), a1.ID, student)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)

	_, err = f.svc.RejectApplication(context.Background(), approved.ID, student)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, models.ApplicationStatusApproved, f.store.app(approved.ID).Status)
	assert.Equal(t, 1, f.publisher.count(events.ApplicationRejected))
}

func TestApprovedApplicationIsImmutable(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusAssigned)
	approved := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusApproved)
	name := "New name"

	err := f.svc.UpdateApplication(context.Background(), approved.ID, dto.UpdateApplicationRequest{TutorName: &name}, tutor1)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = f.svc.DeleteApplication(context.Background(), approved.ID, tutor1)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = f.svc.DeleteApplication(context.Background(), approved.ID, admin)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, "Tutor "+tutor1.Email, f.store.app(approved.ID).TutorName)
}

func TestUpdateAndDeletePendingApplication(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	app := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)
	salary := 250000.0

	err := f.svc.UpdateApplication(context.Background(), app.ID, dto.UpdateApplicationRequest{ExpectedSalary: &salary}, tutor1)
	require.NoError(t, err)
	assert.Equal(t, salary, f.store.app(app.ID).ExpectedSalary)

	err = f.svc.UpdateApplication(context.Background(), app.ID, dto.UpdateApplicationRequest{}, tutor1)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = f.svc.DeleteApplication(context.Background(), app.ID, &models.JWTClaims{Email: "intruder@example.com", Role: models.RoleTutor})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, f.svc.DeleteApplication(context.Background(), app.ID, tutor1))
	err = f.svc.DeleteApplication(context.Background(), app.ID, tutor1)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubmitApplication(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	assigned := f.store.addTuition(student.Email, models.TuitionStatusAssigned)
	req := dto.SubmitApplicationRequest{TuitionID: tu.ID, TutorEmail: "Tutor1@Example.com", TutorName: "Rahim", ExpectedSalary: 100}

	app, err := f.svc.SubmitApplication(context.Background(), req, tutor1)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, "tutor1@example.com", app.TutorEmail)

	_, err = f.svc.SubmitApplication(context.Background(), req, tutor1)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	req.TuitionID = assigned.ID
	_, err = f.svc.SubmitApplication(context.Background(), req, tutor1)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	req.TuitionID = uuid.NewString()
	_, err = f.svc.SubmitApplication(context.Background(), req, tutor1)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	req.TuitionID = tu.ID
	req.TutorEmail = "someone@example.com"
	_, err = f.svc.SubmitApplication(context.Background(), req, tutor1)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	mine, err := f.svc.ListMine(context.Background(), tutor1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func openSession(t *testing.T, f *workflowFixture, tu models.Tuition, app models.Application) string {
	t.Helper()
	res, err := f.svc.CreateCheckoutSession(context.Background(), dto.CreateCheckoutSessionRequest{
		Amount:        150000,
		TutorName:     app.TutorName,
		StudentEmail:  tu.StudentEmail,
		ApplicationID: app.ID,
		TuitionID:     tu.ID,
	}, student)
	require.NoError(t, err)
	require.NotEmpty(t, res.URL)
	return res.SessionID
}

func TestCreateCheckoutSessionCarriesMetadata(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	app := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)

	openSession(t, f, tu, app)
	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, app.ID, req.Metadata.ApplicationID)
	assert.Equal(t, tu.ID, req.Metadata.TuitionID)
	assert.Equal(t, "Mathematics (Grade 9)", req.Metadata.TuitionName)
	assert.Equal(t, student.Email, req.CustomerEmail)
	assert.Equal(t, "Sari Student", req.CustomerName)
	assert.Equal(t, "IDR", req.Currency)
}

func TestCreateCheckoutSessionGuards(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	other := f.store.addTuition(student.Email, models.TuitionStatusActive)
	app := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)
	rejected := f.store.addApplication(tu.ID, "x@example.com", models.ApplicationStatusRejected)
	base := dto.CreateCheckoutSessionRequest{Amount: 1000, TutorName: "Rahim", StudentEmail: student.Email, ApplicationID: app.ID, TuitionID: tu.ID}

	_, err := f.svc.CreateCheckoutSession(context.Background(), base, &models.JWTClaims{Email: "stranger@example.com", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	mismatch := base
	mismatch.TuitionID = other.ID
	_, err = f.svc.CreateCheckoutSession(context.Background(), mismatch, student)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	closed := base
	closed.ApplicationID = rejected.ID
	_, err = f.svc.CreateCheckoutSession(context.Background(), closed, student)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	f.gateway.err = errors.New("midtrans unavailable")
	_, err = f.svc.CreateCheckoutSession(context.Background(), base, student)
	assert.True(t, errors.Is(err, appErrors.ErrUpstream))
}

func TestSettlePaymentNotCompletedWritesNothing(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	app := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)
	ref := openSession(t, f, tu, app)

	result, err := f.svc.SettlePayment(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "payment not completed", result.Message)
	assert.Zero(t, f.store.paymentCount())
	assert.Zero(t, f.store.txCount)
	assert.Equal(t, models.ApplicationStatusPending, f.store.app(app.ID).Status)
}

func TestSettlePaymentIsIdempotent(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	app := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)
	sibling := f.store.addApplication(tu.ID, "tutor2@example.com", models.ApplicationStatusPending)
	ref := openSession(t, f, tu, app)
	f.gateway.complete(ref, "trx-1")

	first, err := f.svc.SettlePayment(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.AlreadyRecorded)
	assert.Equal(t, "trx-1", first.TransactionID)
	assert.Equal(t, "Mathematics (Grade 9)", first.TuitionName)
	assert.Equal(t, app.TutorName, first.TutorName)

	assert.Equal(t, models.ApplicationStatusApproved, f.store.app(app.ID).Status)
	assert.Equal(t, models.ApplicationStatusRejected, f.store.app(sibling.ID).Status)
	assert.Equal(t, models.TuitionStatusAssigned, f.store.tuition(tu.ID).Status)

	second, err := f.svc.SettlePayment(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.AlreadyRecorded)
	assert.Equal(t, first.TuitionName, second.TuitionName)
	assert.Equal(t, first.TutorName, second.TutorName)
	assert.Equal(t, 1, f.store.paymentCount())
	assert.Equal(t, 1, f.publisher.count(events.PaymentSettled))
	assert.Equal(t, 1, f.publisher.count(events.ApplicationApproved))
}

func TestConcurrentSettlementsRecordOnePayment(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	app := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)
	ref := openSession(t, f, tu, app)
	f.gateway.complete(ref, "trx-race")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.SettlePayment(context.Background(), ref)
			assert.NoError(t, err)
			assert.True(t, res.Success)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.paymentCount())
	assert.Equal(t, 1, f.store.approvedCount(tu.ID))
	assert.Equal(t, 1, f.publisher.count(events.PaymentSettled))
}

func TestSettlePaymentForAlreadyApprovedApplication(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	app := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)
	ref := openSession(t, f, tu, app)
	_, err := f.svc.ApproveApplication(context.Background(), app.ID, student)
	require.NoError(t, err)
	f.gateway.complete(ref, "trx-2")

	result, err := f.svc.SettlePayment(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, f.store.paymentCount())
	assert.Equal(t, 1, f.store.approvedCount(tu.ID))
}

func TestSettlePaymentConflictRollsBack(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	paid := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)
	winner := f.store.addApplication(tu.ID, "tutor2@example.com", models.ApplicationStatusPending)
	ref := openSession(t, f, tu, paid)
	_, err := f.svc.ApproveApplication(context.Background(), winner.ID, student)
	require.NoError(t, err)
	f.gateway.complete(ref, "trx-3")

	_, err = f.svc.SettlePayment(context.Background(), ref)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Zero(t, f.store.paymentCount())
	assert.Equal(t, models.ApplicationStatusRejected, f.store.app(paid.ID).Status)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().WorkflowOutcomes["settle."+OutcomeConflict])
}

func TestSettlePaymentUnknownSession(t *testing.T) {
	f := newWorkflowFixture()
	_, err := f.svc.SettlePayment(context.Background(), "TUI-unknown")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.SettlePayment(context.Background(), " ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func signedNotification(orderID, status string) payment.Notification {
	n := payment.Notification{OrderID: orderID, StatusCode: "200", GrossAmount: "150000.00", TransactionStatus: status, TransactionID: "trx-n"}
	n.SignatureKey = payment.Signature(n.OrderID, n.StatusCode, n.GrossAmount, "server-key")
	return n
}

func TestHandleNotificationEnqueuesCompletedSessions(t *testing.T) {
	f := newWorkflowFixture()
	queue := &queueStub{}
	f.svc.UseSettlementQueue(queue)

	require.NoError(t, f.svc.HandleNotification(context.Background(), signedNotification("TUI-1", "settlement")))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "TUI-1", queue.jobs[0].Key)
	assert.Equal(t, SettlementJobType, queue.jobs[0].Type)

	require.NoError(t, f.svc.HandleNotification(context.Background(), signedNotification("TUI-2", "pending")))
	assert.Len(t, queue.jobs, 1)

	queue.err = jobs.ErrDuplicate
	assert.NoError(t, f.svc.HandleNotification(context.Background(), signedNotification("TUI-1", "settlement")))

	queue.err = jobs.ErrQueueFull
	err := f.svc.HandleNotification(context.Background(), signedNotification("TUI-4", "settlement"))
	assert.True(t, errors.Is(err, appErrors.ErrInternal), "a full queue must not be acknowledged")

	forged := signedNotification("TUI-3", "settlement")
	forged.GrossAmount = "1.00"
	err = f.svc.HandleNotification(context.Background(), forged)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestProcessSettlementJob(t *testing.T) {
	f := newWorkflowFixture()
	tu := f.store.addTuition(student.Email, models.TuitionStatusActive)
	app := f.store.addApplication(tu.ID, tutor1.Email, models.ApplicationStatusPending)
	ref := openSession(t, f, tu, app)

	err := f.svc.ProcessSettlementJob(context.Background(), jobs.Job{Payload: ref})
	assert.ErrorIs(t, err, errNotYetCompleted)

	f.gateway.complete(ref, "trx-job")
	require.NoError(t, f.svc.ProcessSettlementJob(context.Background(), jobs.Job{Payload: ref}))
	assert.Equal(t, 1, f.store.paymentCount())

	assert.NoError(t, f.svc.ProcessSettlementJob(context.Background(), jobs.Job{Payload: "TUI-missing"}))
	assert.NoError(t, f.svc.ProcessSettlementJob(context.Background(), jobs.Job{Payload: 42}))

	f.gateway.err = errors.New("timeout")
	assert.Error(t, f.svc.ProcessSettlementJob(context.Background(), jobs.Job{Payload: ref}))
}
