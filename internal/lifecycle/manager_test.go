package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/database/mock"
	"github.com/kozaktomas/shop-kiosk/internal/events"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	manager   *Manager
	customers *mock.MockCustomerStore
	inventory *mock.MockInventoryStore
	records   *mock.MockPastRecordStore
	clock     *fakeClock
	published *recordingPublisher
}

func newFixture(t *testing.T, withMatcher bool) *fixture {
	t.Helper()
	f := &fixture{
		customers: mock.NewMockCustomerStore(),
		inventory: mock.NewMockInventoryStore(),
		records:   mock.NewMockPastRecordStore(),
		clock:     &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		published: &recordingPublisher{},
	}
	f.inventory.Now = f.clock.Now
	cfg := Config{Publisher: f.published, Clock: f.clock.Now}
	if withMatcher {
		cfg.Matcher = f.customers
	}
	f.manager = NewManager(f.customers, f.inventory, f.records, cfg)
	return f
}

var sigAlice = []float32{0.9, 0.1, 0.2, 0.3}

func TestRegister_ListRoundTrip(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	c, err := f.manager.Register(ctx, "  Alice ", sigAlice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.Name)
	assert.Equal(t, NotCheckedIn, State(c))

	list, err := f.customers.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].Name)
	assert.Equal(t, 0, list[0].VisitCount)
	assert.Nil(t, list[0].EntryTime)
	assert.Nil(t, list[0].ExitTime)
	assert.Contains(t, f.published.types(), events.TypeCustomers)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.manager.Register(ctx, "   ", sigAlice)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = f.manager.Register(ctx, "Alice", nil)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, 0, f.customers.Count())
}

func TestCheckIn_AlreadyCheckedInKeepsVisitCount(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	c, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)

	in, err := f.manager.CheckIn(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, in.VisitCount)
	assert.Equal(t, CheckedIn, State(in))

	_, err = f.manager.CheckIn(ctx, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	stored, err := f.customers.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VisitCount)
}

func TestCheckIn_NotFound(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.manager.CheckIn(context.Background(), 42)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCheckIn_ReopensClosedVisit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	c, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)

	_, err = f.manager.CheckIn(ctx, c.ID)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	_, err = f.manager.CheckOut(ctx, c.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	again, err := f.manager.CheckIn(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.VisitCount)
	assert.Nil(t, again.ExitTime, "exit time is cleared when a new visit opens")
	assert.Equal(t, f.clock.Now(), *again.EntryTime)
}

func TestCheckOut_NinetyMinuteVisit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	c, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)
	_, err = f.manager.CheckIn(ctx, c.ID)
	require.NoError(t, err)

	f.clock.Advance(90 * time.Minute)
	out, err := f.manager.CheckOut(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, CheckedOut, State(&out.Customer))
	assert.Equal(t, "90 minutes", out.Record.Duration)
	assert.Equal(t, int64(1), out.Record.VisitNumber)
	assert.Nil(t, out.Record.Product)

	recs, err := f.records.ListPastRecords(ctx, database.PastRecordFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Alice", recs[0].CustomerName)
	assert.Equal(t, "90 minutes", recs[0].Duration)

	stored, err := f.customers.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExitTime)
	assert.Equal(t, f.clock.Now(), *stored.ExitTime)
	assert.Contains(t, f.published.types(), events.TypeRecords)
}

func TestCheckOut_NoOpenVisit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	c, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)

	_, err = f.manager.CheckOut(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNoOpenVisit, "never checked in")

	_, err = f.manager.CheckIn(ctx, c.ID)
	require.NoError(t, err)
	_, err = f.manager.CheckOut(ctx, c.ID)
	require.NoError(t, err)

	_, err = f.manager.CheckOut(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNoOpenVisit, "already checked out")
	assert.Len(t, f.records.Records(), 1)

	_, err = f.manager.CheckOut(ctx, 999)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCheckOut_ProductHeuristic(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	start := f.clock.Now()

	f.inventory.PutItem(database.InventoryItem{
		ProductID: "J001", Name: "Gold Necklace", Price: 150, Quantity: 10,
		LastUpdated: start.Add(-time.Hour),
	})

	c, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)
	_, err = f.manager.CheckIn(ctx, c.ID)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	f.inventory.PutItem(database.InventoryItem{
		ProductID: "J002", Name: "Silver Bracelet", Price: 75, Quantity: 20,
		Image: []byte{0xff, 0xd8}, LastUpdated: f.clock.Now(),
	})
	f.clock.Advance(5 * time.Minute)
	f.inventory.PutItem(database.InventoryItem{
		ProductID: "J003", Name: "Diamond Ring", Price: 500, Quantity: 5,
		LastUpdated: f.clock.Now(),
	})

	f.clock.Advance(125 * time.Second)
	out, err := f.manager.CheckOut(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 minutes", out.Record.Duration)
	require.NotNil(t, out.Record.Product)
	assert.Equal(t, "J003", out.Record.Product.ProductID)
	assert.Equal(t, "Diamond Ring", out.Record.Product.Name)
	assert.InDelta(t, 500.0, out.Record.Product.Price, 1e-9)
}

func TestCheckOut_InventoryLookupFailureRecordsNoProduct(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.inventory.LatestError = errors.New("inventory database unavailable")

	c, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)
	_, err = f.manager.CheckIn(ctx, c.ID)
	require.NoError(t, err)

	out, err := f.manager.CheckOut(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, out.Record.Product)
	assert.Len(t, f.records.Records(), 1)
}

func TestCheckOut_PartialFailure(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	storeErr := database.IOError("append past record", errors.New("connection refused"))
	f.records.AppendError = storeErr

	c, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)
	_, err = f.manager.CheckIn(ctx, c.ID)
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)

	_, err = f.manager.CheckOut(ctx, c.ID)
	var partial *PartialCheckoutError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, c.ID, partial.CustomerID)
	assert.Equal(t, "Alice", partial.CustomerName)
	assert.Equal(t, "3 minutes", partial.Record.Duration)
	assert.ErrorIs(t, err, storeErr)

	// The customer update is not rolled back.
	stored, err := f.customers.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, CheckedOut, State(stored))
	assert.Contains(t, f.published.types(), events.TypeNotification)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 minutes"},
		{59 * time.Second, "0 minutes"},
		{125 * time.Second, "2 minutes"},
		{90 * time.Minute, "90 minutes"},
		{-5 * time.Minute, "0 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "duration %v", tt.in)
	}
}

func TestState(t *testing.T) {
	now := time.Now()
	assert.Equal(t, Unregistered, State(nil))
	assert.Equal(t, NotCheckedIn, State(&database.Customer{}))
	assert.Equal(t, CheckedIn, State(&database.Customer{EntryTime: &now}))
	assert.Equal(t, CheckedOut, State(&database.Customer{EntryTime: &now, ExitTime: &now}))
	assert.Equal(t, "checked_in", CheckedIn.String())

	var s VisitState
	require.NoError(t, s.UnmarshalText([]byte("checked_out")))
	assert.Equal(t, CheckedOut, s)
	assert.Error(t, s.UnmarshalText([]byte("gone")))
}

func matchFace(id int64, sig []float32) recognition.Match {
	score := 0.95
	return recognition.Match{Box: recognition.Box{X1: 100, Y1: 100}, Signature: sig, CustomerID: id, SimilarityScore: &score}
}

func TestClassify_Outcomes(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	alice, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)
	bob, err := f.manager.Register(ctx, "Bob", []float32{0.1, 0.9, 0.1, 0.1})
	require.NoError(t, err)
	_, err = f.manager.CheckIn(ctx, bob.ID)
	require.NoError(t, err)

	unknown := recognition.NoMatch{Signature: []float32{0.3, 0.3, 0.9, 0.1}}
	result := &recognition.DetectionResult{
		RequestID: "req-1",
		Faces:     []recognition.Face{matchFace(alice.ID, sigAlice), matchFace(bob.ID, bob.FaceSignature), unknown},
	}

	candidates, err := f.manager.Classify(ctx, result)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, OutcomeOfferCheckIn, candidates[0].Outcome)
	assert.Equal(t, alice.ID, candidates[0].Customer.ID)
	assert.Equal(t, OutcomeAlreadyCheckedIn, candidates[1].Outcome)
	assert.Equal(t, OutcomeOfferRegistration, candidates[2].Outcome)
	assert.Nil(t, candidates[2].Customer)
	assert.Contains(t, f.published.types(), events.TypeDetection)
}

func TestClassify_RepeatedFramesNeverCount(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	alice, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)
	_, err = f.manager.CheckIn(ctx, alice.ID)
	require.NoError(t, err)

	frame := &recognition.DetectionResult{Faces: []recognition.Face{matchFace(alice.ID, sigAlice)}}
	for range 2 {
		candidates, err := f.manager.Classify(ctx, frame)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, OutcomeAlreadyCheckedIn, candidates[0].Outcome)
	}

	stored, err := f.customers.GetCustomer(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VisitCount)
}

func TestClassify_StoreIsAuthoritative(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	alice, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)

	// The process claims an exit time but the store says never checked in.
	exit := f.clock.Now()
	face := matchFace(alice.ID, sigAlice)
	face.ExitTime = &exit

	candidates, err := f.manager.Classify(ctx, &recognition.DetectionResult{Faces: []recognition.Face{face}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOfferCheckIn, candidates[0].Outcome)
}

func TestClassify_DeletedMatchFallsBackToRegistration(t *testing.T) {
	f := newFixture(t, false)
	candidates, err := f.manager.Classify(context.Background(), &recognition.DetectionResult{
		Faces: []recognition.Face{matchFace(77, sigAlice)},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, OutcomeOfferRegistration, candidates[0].Outcome)
}

func TestClassify_StoreSideMatch(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	alice, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)

	candidates, err := f.manager.Classify(ctx, &recognition.DetectionResult{
		Faces: []recognition.Face{recognition.NoMatch{Signature: []float32{0.9, 0.1, 0.2, 0.31}}},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, OutcomeOfferCheckIn, candidates[0].Outcome)
	assert.True(t, candidates[0].StoreMatch)
	assert.Equal(t, alice.ID, candidates[0].Customer.ID)
	assert.Less(t, candidates[0].Distance, 0.08)
}

func TestClassify_StoreErrorAborts(t *testing.T) {
	f := newFixture(t, false)
	f.customers.GetError = database.IOError("get customer", errors.New("timeout"))

	_, err := f.manager.Classify(context.Background(), &recognition.DetectionResult{
		Faces: []recognition.Face{matchFace(1, sigAlice)},
	})
	require.Error(t, err)
}

func TestOneClickActions(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.manager.CheckInLastDetected(ctx)
	assert.ErrorIs(t, err, ErrNoCandidate)
	_, err = f.manager.RegisterLastDetected(ctx, "Carol")
	assert.ErrorIs(t, err, ErrNoCandidate)

	carolSig := []float32{0.2, 0.2, 0.2, 0.9}
	_, err = f.manager.Classify(ctx, &recognition.DetectionResult{
		Faces: []recognition.Face{recognition.NoMatch{Signature: carolSig}},
	})
	require.NoError(t, err)

	carol, err := f.manager.RegisterLastDetected(ctx, "Carol")
	require.NoError(t, err)
	assert.Equal(t, carolSig, carol.FaceSignature)

	// The fresh registration becomes the check-in hint.
	in, err := f.manager.CheckInLastDetected(ctx)
	require.NoError(t, err)
	assert.Equal(t, carol.ID, in.ID)
	assert.Equal(t, 1, in.VisitCount)

	_, err = f.manager.CheckInLastDetected(ctx)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	_, err = f.manager.RegisterLastDetected(ctx, "Carol again")
	assert.ErrorIs(t, err, ErrNoCandidate, "unmatched hint is consumed by registration")
}

func TestRenameAndDelete(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	alice, err := f.manager.Register(ctx, "Alice", sigAlice)
	require.NoError(t, err)
	_, err = f.manager.CheckIn(ctx, alice.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.manager.CheckOut(ctx, alice.ID)
	require.NoError(t, err)

	require.NoError(t, f.manager.Rename(ctx, alice.ID, "Alice Smith"))
	assert.ErrorIs(t, f.manager.Rename(ctx, alice.ID, " "), ErrInvalidName)
	assert.ErrorIs(t, f.manager.Rename(ctx, 99, "Nobody"), ErrCustomerNotFound)

	stored, err := f.customers.GetCustomer(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", stored.Name)

	require.NoError(t, f.manager.Delete(ctx, alice.ID))
	assert.ErrorIs(t, f.manager.Delete(ctx, alice.ID), ErrCustomerNotFound)

	// History keeps the name snapshot taken at checkout.
	recs, err := f.records.ListPastRecords(ctx, database.PastRecordFilter{CustomerName: "Alice"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
