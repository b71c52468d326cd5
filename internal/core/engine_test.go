package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/events"
	"github.com/joseph-ayodele/triplelock/internal/oracle"
	"github.com/joseph-ayodele/triplelock/internal/payments"
	"github.com/joseph-ayodele/triplelock/internal/proof"
	"github.com/joseph-ayodele/triplelock/internal/repository"
	"github.com/joseph-ayodele/triplelock/internal/verification"
)

var (
	ngo     = entity.Actor{ID: "ngo-1", Role: constants.RoleNGO}
	admin   = entity.Actor{ID: "admin-1", Role: constants.RoleAdmin}
	donor   = entity.Actor{ID: "donor-1", Role: constants.RoleDonor}
	vendor1 = entity.Actor{ID: "V1", Role: constants.RoleVendor}
	vendor2 = entity.Actor{ID: "V2", Role: constants.RoleVendor}
)

func beneficiary(id string) entity.Actor {
	return entity.Actor{ID: id, Role: constants.RoleBeneficiary}
}

// scriptedOracle returns the configured analysis or error.
type scriptedOracle struct {
	mu    sync.Mutex
	score float64
	anoms []string
	err   error
	calls int
}

func (o *scriptedOracle) set(score float64, err error, anomalies ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.score, o.err, o.anoms = score, err, anomalies
}

func (o *scriptedOracle) Analyze(ctx context.Context, ev oracle.Evidence) (oracle.Analysis, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return oracle.Analysis{}, o.err
	}
	return oracle.Analysis{Authenticity: o.score, Anomalies: o.anoms}, nil
}

// countingRail records every transfer and can be told to fail.
type countingRail struct {
	mu      sync.Mutex
	calls   []payments.Transfer
	failAt  int // fail while len(calls) < failAt
	failErr error
}

func (r *countingRail) RecordTransfer(ctx context.Context, t payments.Transfer) (payments.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, t)
	if len(r.calls) <= r.failAt {
		if r.failErr != nil {
			return payments.Receipt{}, r.failErr
		}
		return payments.Receipt{}, errors.New("rail unavailable")
	}
	return payments.Receipt{ReceiptID: "rcpt-" + t.IdempotencyKey}, nil
}

func (r *countingRail) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingRetrier struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingRetrier) ScheduleVerification(_ context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

type harness struct {
	engine   *Engine
	repo     repository.ExpenditureRepository
	oracle   *scriptedOracle
	rail     *countingRail
	recorder *events.Recorder
	retrier  *recordingRetrier
	project  uuid.UUID
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite, DSN: filepath.Join(t.TempDir(), "engine.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))

	projects := repository.NewProjectRepository(store, nil)
	p := &entity.Project{ID: uuid.New(), Name: "Clinic", NGOID: ngo.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, projects.CreateProject(ctx, p))

	h := &harness{
		repo:     repository.NewExpenditureRepository(store, nil),
		oracle:   &scriptedOracle{score: 0.95},
		rail:     &countingRail{},
		recorder: &events.Recorder{},
		retrier:  &recordingRetrier{},
		project:  p.ID,
		clock:    &fakeClock{now: time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)},
	}
	gate := verification.NewGate(h.oracle, verification.Policy{Threshold: 0.85, Timeout: time.Second}, h.clock.Now, nil)
	h.engine = NewEngine(h.repo, projects, gate, h.rail,
		WithPublisher(h.recorder),
		WithClock(h.clock.Now),
		WithRequiredQuorum(3),
		WithRetrier(h.retrier),
	)
	return h
}

func (h *harness) create(t *testing.T, vendorID string) *entity.Expenditure {
	t.Helper()
	exp, err := h.engine.CreateExpenditure(context.Background(), ngo, CreateExpenditureInput{
		ProjectID:   h.project,
		VendorID:    vendorID,
		Amount:      decimal.NewFromInt(25000),
		Description: "cement and rebar",
		Category:    "construction",
	})
	require.NoError(t, err)
	return exp
}

func oneImage() proof.Submission {
	return proof.Submission{
		Images:      []string{"https://evidence.example.org/delivery-1.jpg"},
		Location:    entity.Location{Latitude: 9.05, Longitude: 7.49},
		Description: "delivered to site",
	}
}

// toVerified drives a fresh expenditure to ai_verified.
func (h *harness) toVerified(t *testing.T) *entity.Expenditure {
	t.Helper()
	exp := h.create(t, vendor1.ID)
	h.oracle.set(0.95, nil)
	exp, err := h.engine.SubmitVendorProof(context.Background(), vendor1, exp.ID, oneImage())
	require.NoError(t, err)
	require.Equal(t, constants.StatusAIVerified, exp.Status)
	return exp
}

func (h *harness) toApproved(t *testing.T) *entity.Expenditure {
	t.Helper()
	exp := h.toVerified(t)
	var err error
	for _, b := range []string{"B1", "B2", "B3"} {
		exp, err = h.engine.SubmitBeneficiaryVote(context.Background(), beneficiary(b), exp.ID, true, nil)
		require.NoError(t, err)
	}
	require.Equal(t, constants.StatusBeneficiaryApproved, exp.Status)
	return exp
}

func TestCreateExpenditure(t *testing.T) {
	h := newHarness(t)
	exp := h.create(t, "")

	require.Equal(t, constants.StatusPending, exp.Status)
	require.Equal(t, string(constants.Construction), exp.Category)
	require.Nil(t, exp.VendorID)
	require.Equal(t, 3, exp.Quorum.Required)
	require.Equal(t, []string{"ExpenditureCreated"}, h.recorder.Types())

	stored, err := h.engine.GetExpenditure(context.Background(), donor, exp.ID)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(25000).Equal(stored.Amount))
	require.Nil(t, stored.VendorProof)
	require.Nil(t, stored.AIVerification)
}

func TestCreateExpenditureErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	valid := CreateExpenditureInput{ProjectID: h.project, Amount: decimal.NewFromInt(10), Category: "Food"}

	zero := valid
	zero.Amount = decimal.Zero
	_, err := h.engine.CreateExpenditure(ctx, ngo, zero)
	require.ErrorIs(t, err, common.ErrValidation)

	negative := valid
	negative.Amount = decimal.NewFromInt(-5)
	_, err = h.engine.CreateExpenditure(ctx, ngo, negative)
	require.ErrorIs(t, err, common.ErrValidation)

	noCategory := valid
	noCategory.Category = "  "
	_, err = h.engine.CreateExpenditure(ctx, ngo, noCategory)
	require.ErrorIs(t, err, common.ErrValidation)

	missingProject := valid
	missingProject.ProjectID = uuid.New()
	_, err = h.engine.CreateExpenditure(ctx, ngo, missingProject)
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = h.engine.CreateExpenditure(ctx, donor, missingProject)
	require.ErrorIs(t, err, common.ErrUnauthorized, "role is checked before the project lookup")

	_, err = h.engine.CreateExpenditure(ctx, vendor1, valid)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = h.engine.CreateExpenditure(ctx, entity.Actor{}, valid)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	unknown := valid
	unknown.Category = "Microgrants"
	exp, err := h.engine.CreateExpenditure(ctx, admin, unknown)
	require.NoError(t, err)
	require.Equal(t, "Microgrants", exp.Category)

	require.Equal(t, []string{"ExpenditureCreated"}, h.recorder.Types(), "failed preconditions emit nothing")
}

func TestAssignVendor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.create(t, "")

	_, err := h.engine.AssignVendor(ctx, ngo, exp.ID, "")
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = h.engine.AssignVendor(ctx, ngo, uuid.New(), "V1")
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = h.engine.AssignVendor(ctx, vendor1, exp.ID, "V1")
	require.ErrorIs(t, err, common.ErrUnauthorized)

	got, err := h.engine.AssignVendor(ctx, ngo, exp.ID, "V1")
	require.NoError(t, err)
	require.Equal(t, "V1", *got.VendorID)
	require.Equal(t, constants.StatusPending, got.Status)

	// Same vendor again: no write, no event.
	_, err = h.engine.AssignVendor(ctx, ngo, exp.ID, "V1")
	require.NoError(t, err)

	got, err = h.engine.AssignVendor(ctx, admin, exp.ID, "V2")
	require.NoError(t, err)
	require.Equal(t, "V2", *got.VendorID)
	require.Equal(t, []string{"ExpenditureCreated", "VendorAssigned", "VendorAssigned"}, h.recorder.Types())

	_, err = h.engine.SubmitVendorProof(ctx, vendor2, exp.ID, oneImage())
	require.NoError(t, err)
	_, err = h.engine.AssignVendor(ctx, ngo, exp.ID, "V3")
	require.ErrorIs(t, err, common.ErrInvalidState)
}

// Scenario A
func TestScenarioVerificationPasses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.create(t, "")
	_, err := h.engine.AssignVendor(ctx, ngo, exp.ID, vendor1.ID)
	require.NoError(t, err)

	h.oracle.set(0.95, nil)
	got, err := h.engine.SubmitVendorProof(ctx, vendor1, exp.ID, oneImage())
	require.NoError(t, err)
	require.Equal(t, constants.StatusAIVerified, got.Status)
	require.NotNil(t, got.AIVerification)
	require.True(t, got.AIVerification.Verified)

	stored, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusAIVerified, stored.Status)
	require.True(t, stored.AIVerification.Verified)
	require.InDelta(t, 0.85, stored.AIVerification.Threshold, 1e-9)
	require.Equal(t, []string{"https://evidence.example.org/delivery-1.jpg"}, stored.VendorProof.Images)
	require.Equal(t, vendor1.ID, stored.VendorProof.VendorID)

	require.Equal(t, []string{"ExpenditureCreated", "VendorAssigned", "VendorProofSubmitted", "VerificationCompleted"}, h.recorder.Types())
}

// Scenario B
func TestScenarioVerificationFailsRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.create(t, vendor1.ID)

	h.oracle.set(0.5, nil, "blurred image")
	got, err := h.engine.SubmitVendorProof(ctx, vendor1, exp.ID, oneImage())
	require.NoError(t, err)
	require.Equal(t, constants.StatusRejected, got.Status)
	require.False(t, got.AIVerification.Verified)
	require.Equal(t, []string{"blurred image"}, got.AIVerification.Anomalies)

	_, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B1"), exp.ID, true, nil)
	require.ErrorIs(t, err, common.ErrInvalidState)

	_, err = h.engine.ReleaseFunds(ctx, ngo, exp.ID)
	require.ErrorIs(t, err, common.ErrInvalidState)
	require.Zero(t, h.rail.count())

	_, err = h.engine.RejectExpenditure(ctx, ngo, exp.ID, "again")
	require.ErrorIs(t, err, common.ErrInvalidState)

	require.Equal(t, []string{"ExpenditureCreated", "VendorProofSubmitted", "ExpenditureRejected"}, h.recorder.Types())
}

// Scenario C
func TestScenarioQuorumReachedOnFlip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toVerified(t)
	h.recorder.Reset()

	var err error
	exp, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B1"), exp.ID, true, nil)
	require.NoError(t, err)
	exp, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B2"), exp.ID, true, nil)
	require.NoError(t, err)
	fb := "not delivered yet"
	exp, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B3"), exp.ID, false, &fb)
	require.NoError(t, err)

	require.Equal(t, 2, exp.Quorum.Current)
	require.False(t, exp.Quorum.Achieved)
	require.Equal(t, constants.StatusAIVerified, exp.Status)

	exp, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B3"), exp.ID, true, nil)
	require.NoError(t, err)
	require.Equal(t, 3, exp.Quorum.Current)
	require.True(t, exp.Quorum.Achieved)
	require.Equal(t, constants.StatusBeneficiaryApproved, exp.Status)
	require.NotNil(t, exp.QuorumReachedAt)

	stored, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, stored.Votes, 3)
	require.Equal(t, []string{"B1", "B2", "B3"}, []string{stored.Votes[0].BeneficiaryID, stored.Votes[1].BeneficiaryID, stored.Votes[2].BeneficiaryID})
	require.Nil(t, stored.Votes[2].Feedback)
	require.Equal(t, 3, stored.Quorum.Current)
	require.True(t, stored.Quorum.Achieved)

	require.Equal(t, []string{
		"BeneficiaryVoteRecorded", "BeneficiaryVoteRecorded", "BeneficiaryVoteRecorded",
		"BeneficiaryVoteRecorded", "QuorumAchieved",
	}, h.recorder.Types())
}

func TestQuorumIsSticky(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toApproved(t)
	h.recorder.Reset()

	exp, err := h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B1"), exp.ID, false, nil)
	require.NoError(t, err)
	require.Equal(t, constants.StatusBeneficiaryApproved, exp.Status)
	require.Equal(t, 2, exp.Quorum.Current)
	require.False(t, exp.Quorum.Achieved)

	exp, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B4"), exp.ID, true, nil)
	require.NoError(t, err)
	require.True(t, exp.Quorum.Achieved)

	require.Equal(t, []string{"BeneficiaryVoteRecorded", "BeneficiaryVoteRecorded"}, h.recorder.Types(), "QuorumAchieved fires once")
}

func TestVoteErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending := h.create(t, vendor1.ID)

	long := string(make([]byte, maxFeedbackLength+1))
	_, err := h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B1"), pending.ID, true, &long)
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B1"), uuid.New(), true, nil)
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = h.engine.SubmitBeneficiaryVote(ctx, donor, pending.ID, true, nil)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B1"), pending.ID, true, nil)
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestDuplicateVoteDoesNotDoubleCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toVerified(t)

	for i := 0; i < 3; i++ {
		var err error
		exp, err = h.engine.SubmitBeneficiaryVote(ctx, beneficiary("B1"), exp.ID, true, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 1, exp.Quorum.Current)
	require.Equal(t, constants.StatusAIVerified, exp.Status)
	require.Len(t, exp.Votes, 1)
}

// Scenario D
func TestScenarioReleaseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toApproved(t)
	h.recorder.Reset()

	got, err := h.engine.ReleaseFunds(ctx, ngo, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusCompleted, got.Status)
	require.NotNil(t, got.Release)
	require.Equal(t, "rcpt-"+exp.ID.String(), got.Release.ReceiptID)
	require.Equal(t, ngo.ID, got.Release.ReleasedBy)

	_, err = h.engine.ReleaseFunds(ctx, ngo, exp.ID)
	require.ErrorIs(t, err, common.ErrInvalidState)
	require.Equal(t, 1, h.rail.count())
	require.Equal(t, exp.ID.String(), h.rail.calls[0].IdempotencyKey)
	require.Equal(t, vendor1.ID, h.rail.calls[0].PayeeID)
	require.True(t, decimal.NewFromInt(25000).Equal(h.rail.calls[0].Amount))

	stored, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusCompleted, stored.Status)
	require.Equal(t, got.Release.ReceiptID, stored.Release.ReceiptID)

	require.Equal(t, []string{"FundsReleased"}, h.recorder.Types())
}

func TestReleaseTransferFailureKeepsStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toApproved(t)
	h.rail.failAt = 1
	h.recorder.Reset()

	_, err := h.engine.ReleaseFunds(ctx, admin, exp.ID)
	require.ErrorIs(t, err, common.ErrTransientDependency)
	require.True(t, common.IsRetryable(err))

	stored, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusBeneficiaryApproved, stored.Status)
	require.Empty(t, h.recorder.Types())

	got, err := h.engine.ReleaseFunds(ctx, admin, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusCompleted, got.Status)
	require.Equal(t, 2, h.rail.count())
}

func TestReleaseRefusedByRailIsNotRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toApproved(t)
	h.rail.failAt = 1
	h.rail.failErr = fmt.Errorf("%w: payee account closed", payments.ErrRejected)
	h.recorder.Reset()

	_, err := h.engine.ReleaseFunds(ctx, admin, exp.ID)
	require.ErrorIs(t, err, payments.ErrRejected)
	require.ErrorIs(t, err, common.ErrInvalidState)
	require.NotErrorIs(t, err, common.ErrTransientDependency)
	require.False(t, common.IsRetryable(err))

	stored, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusBeneficiaryApproved, stored.Status)
	require.Nil(t, stored.Release)
	require.Empty(t, h.recorder.Types())
}

func TestReleaseErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toVerified(t)

	_, err := h.engine.ReleaseFunds(ctx, ngo, uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = h.engine.ReleaseFunds(ctx, beneficiary("B1"), exp.ID)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = h.engine.ReleaseFunds(ctx, ngo, exp.ID)
	require.ErrorIs(t, err, common.ErrInvalidState)
	require.Zero(t, h.rail.count())
}

// Scenario E
func TestScenarioWrongVendorIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.create(t, vendor1.ID)

	_, err := h.engine.SubmitVendorProof(ctx, vendor2, exp.ID, oneImage())
	require.ErrorIs(t, err, common.ErrUnauthorized)

	stored, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusPending, stored.Status)
	require.Nil(t, stored.VendorProof)
	require.Zero(t, h.oracle.calls)
}

func TestSubmitProofErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.create(t, vendor1.ID)

	_, err := h.engine.SubmitVendorProof(ctx, vendor1, exp.ID, proof.Submission{})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = h.engine.SubmitVendorProof(ctx, vendor1, uuid.New(), oneImage())
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = h.engine.SubmitVendorProof(ctx, vendor1, exp.ID, oneImage())
	require.NoError(t, err)

	_, err = h.engine.SubmitVendorProof(ctx, vendor1, exp.ID, oneImage())
	require.ErrorIs(t, err, common.ErrInvalidState, "second submission must not overwrite the proof")
	require.Equal(t, 1, h.oracle.calls)
}

func TestOracleFailureLeavesVendorSubmitted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.create(t, vendor1.ID)

	h.oracle.set(0, errors.New("oracle down"))
	got, err := h.engine.SubmitVendorProof(ctx, vendor1, exp.ID, oneImage())
	require.ErrorIs(t, err, common.ErrTransientDependency)
	require.NotNil(t, got)
	require.Equal(t, constants.StatusVendorSubmitted, got.Status)
	require.Equal(t, []uuid.UUID{exp.ID}, h.retrier.ids)

	stored, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusVendorSubmitted, stored.Status)
	require.NotNil(t, stored.VendorProof)
	require.Nil(t, stored.AIVerification)

	_, err = h.engine.RetryVerification(ctx, vendor1, exp.ID)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = h.engine.RetryVerification(ctx, ngo, exp.ID)
	require.ErrorIs(t, err, common.ErrTransientDependency)

	h.oracle.set(0.9, nil)
	got, err = h.engine.RetryVerification(ctx, ngo, exp.ID)
	require.NoError(t, err)
	require.Equal(t, constants.StatusAIVerified, got.Status)

	_, err = h.engine.RunVerification(ctx, exp.ID)
	require.ErrorIs(t, err, common.ErrInvalidState, "verifying twice is refused")

	require.Equal(t, []string{"ExpenditureCreated", "VendorProofSubmitted", "VerificationCompleted"}, h.recorder.Types())
}

func TestRejectExpenditure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toVerified(t)

	_, err := h.engine.RejectExpenditure(ctx, ngo, exp.ID, " ")
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = h.engine.RejectExpenditure(ctx, vendor1, exp.ID, "fraud")
	require.ErrorIs(t, err, common.ErrUnauthorized)

	got, err := h.engine.RejectExpenditure(ctx, admin, exp.ID, "duplicate invoice")
	require.NoError(t, err)
	require.Equal(t, constants.StatusRejected, got.Status)

	evs, err := h.engine.ListEvents(ctx, donor, exp.ID)
	require.NoError(t, err)
	last := evs[len(evs)-1]
	require.Equal(t, constants.EventExpenditureRejected, last.Type)
	require.Equal(t, constants.StatusAIVerified, last.FromStatus)
	require.Equal(t, constants.StatusRejected, last.ToStatus)
	require.Equal(t, admin.ID, last.ActorID)
	require.Contains(t, string(last.Payload), "duplicate invoice")
}

func TestEventLogMatchesPublished(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toApproved(t)
	_, err := h.engine.ReleaseFunds(ctx, ngo, exp.ID)
	require.NoError(t, err)

	logged, err := h.engine.ListEvents(ctx, donor, exp.ID)
	require.NoError(t, err)
	published := h.recorder.Events()
	require.Len(t, logged, len(published))
	for i := range logged {
		require.Equal(t, published[i].ID, logged[i].ID)
		require.Equal(t, published[i].Seq, logged[i].Seq)
	}

	_, err = h.engine.ListEvents(ctx, donor, uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestListExpenditures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, "")
	h.toVerified(t)

	all, err := h.engine.ListExpenditures(ctx, donor, repository.ExpenditureFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	verified, err := h.engine.ListExpenditures(ctx, donor, repository.ExpenditureFilter{Status: constants.StatusAIVerified})
	require.NoError(t, err)
	require.Len(t, verified, 1)

	_, err = h.engine.ListExpenditures(ctx, donor, repository.ExpenditureFilter{Status: "bogus"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestConcurrentVotesAreSerialized(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toVerified(t)
	h.recorder.Reset()

	var wg sync.WaitGroup
	var failures atomic.Int32
	for _, b := range []string{"B1", "B2", "B3", "B4", "B5"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := h.engine.SubmitBeneficiaryVote(ctx, beneficiary(id), exp.ID, true, nil); err != nil {
				failures.Add(1)
			}
		}(b)
	}
	wg.Wait()
	require.Zero(t, failures.Load())

	stored, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	require.Equal(t, 5, stored.Quorum.Current)
	require.Equal(t, constants.StatusBeneficiaryApproved, stored.Status)

	quorumEvents := 0
	for _, typ := range h.recorder.Types() {
		if typ == string(constants.EventQuorumAchieved) {
			quorumEvents++
		}
	}
	require.Equal(t, 1, quorumEvents)
}

func TestConcurrentReleasePaysOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.toApproved(t)

	var wg sync.WaitGroup
	var ok, invalid atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.ReleaseFunds(ctx, ngo, exp.ID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, common.ErrInvalidState):
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), ok.Load())
	require.Equal(t, int32(3), invalid.Load())
	require.Equal(t, 1, h.rail.count())
	require.Zero(t, h.engine.locks.size())
}

func TestStaleVersionSurfacesConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.create(t, vendor1.ID)

	// A second process wrote behind this engine's back.
	stale, err := h.repo.Get(ctx, exp.ID)
	require.NoError(t, err)
	bumped := stale.Clone()
	_, err = h.repo.Apply(ctx, repository.Mutation{Expenditure: bumped, ExpectedVersion: stale.Version})
	require.NoError(t, err)

	_, err = h.repo.Apply(ctx, repository.Mutation{Expenditure: stale.Clone(), ExpectedVersion: stale.Version})
	require.ErrorIs(t, err, common.ErrConflict)

	// The engine always reloads, so it is unaffected.
	_, err = h.engine.AssignVendor(ctx, ngo, exp.ID, vendor2.ID)
	require.NoError(t, err)
}
