package allocation

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Two demands of the same professor requesting the same slot: only the one with the higher priority is placed
func TestRunProfessorConflict(t *testing.T) {
	//** Arrange
	first, second := demand(1, 20, 1, slot(0, 1)), demand(2, 25, 1, slot(0, 1))
	first.Priority = 1
	input := Input{
		Rooms:      []model.Room{classroom(1, 30), classroom(2, 30)},
		Professors: []model.Professor{professor(1)},
		Demands:    []model.Demand{first, second},
		Catalog:    testCatalog(t),
	}

	//** Act
	report, err := NewEngine().Run(context.Background(), input)

	//** Assert
	require.NoError(t, err)
	assert.Contains(t, placedRooms(report), uint64(1))
	assert.Equal(t, map[uint64]UnplacedReason{2: NoAvailableSlot}, unplacedReasons(report))
	assert.Equal(t, 2, report.Unplaced[0].EligibleRooms)
	assert.Empty(t, report.Conflicts)
}

// Accessibility requirement with a single accessible room that is too small
func TestRunNoEligibleRoom(t *testing.T) {
	lecturer := professor(1)
	lecturer.RequiresAccessibleRoom = true

	report, err := RunAllocation(
		context.Background(),
		[]model.Room{classroom(1, 30, model.AccessibleEntrance), classroom(2, 100)},
		[]model.Professor{lecturer},
		[]model.Demand{demand(1, 40, 1, slot(2, 0))},
		nil,
		testCatalog(t),
	)

	require.NoError(t, err)
	assert.Empty(t, report.Placed)
	assert.Equal(t, map[uint64]UnplacedReason{1: NoEligibleRoom}, unplacedReasons(report))
}

// A room free for one requested slot but occupied for the other is not a candidate
func TestRunPartiallyFreeRoomIsExcluded(t *testing.T) {
	catalog := testCatalog(t)
	pinned := []model.AllocationRecord{pinnedRecord(100, 1, 2, slot(3, 2))}
	request := demand(1, 20, 1, slot(1, 2), slot(3, 2))

	t.Run("No other room", func(t *testing.T) {
		report, err := RunAllocation(context.Background(),
			[]model.Room{classroom(1, 30)},
			[]model.Professor{professor(1), professor(2)},
			[]model.Demand{request}, pinned, catalog)

		require.NoError(t, err)
		assert.Equal(t, map[uint64]UnplacedReason{1: NoAvailableSlot}, unplacedReasons(report))
	})

	t.Run("Another room is free for both slots", func(t *testing.T) {
		report, err := RunAllocation(context.Background(),
			[]model.Room{classroom(1, 30), classroom(2, 80)},
			[]model.Professor{professor(1), professor(2)},
			[]model.Demand{request}, pinned, catalog)

		require.NoError(t, err)
		assert.Equal(t, uint64(2), placedRooms(report)[1])
		record, _ := lo.Find(report.Records, func(record model.AllocationRecord) bool { return record.Demand == 1 })
		assert.Equal(t, request.Pattern, record.Slots)
	})
}

func TestRunPicksBestScoringRoom(t *testing.T) {
	lecturer := professor(1)
	lecturer.PreferredRooms = []uint64{3}
	input := Input{
		Rooms:      []model.Room{classroom(1, 100), classroom(2, 30), classroom(3, 60)},
		Professors: []model.Professor{lecturer, professor(2)},
		Demands:    []model.Demand{demand(1, 30, 1, slot(0, 0)), demand(2, 30, 2, slot(0, 0)), demand(3, 30, 2, slot(1, 0))},
		Catalog:    testCatalog(t),
	}

	report, err := NewEngine().Run(context.Background(), input)

	require.NoError(t, err)
	// Demand 1 goes to its professor's preferred room, the others to the tightest room free at their slot
	assert.Equal(t, map[uint64]uint64{1: 3, 2: 2, 3: 2}, placedRooms(report))
}

func TestRunTiesGoToLowestRoomId(t *testing.T) {
	report, err := RunAllocation(context.Background(),
		[]model.Room{classroom(9, 40), classroom(4, 40), classroom(7, 40)},
		[]model.Professor{professor(1)},
		[]model.Demand{demand(1, 20, 1, slot(0, 0))}, nil, testCatalog(t))

	require.NoError(t, err)
	assert.Equal(t, uint64(4), placedRooms(report)[1])
}

func TestRunWeightsChangeTheOutcome(t *testing.T) {
	lecturer := professor(1)
	lecturer.PreferredRooms = []uint64{2}
	input := Input{
		Rooms:      []model.Room{classroom(1, 30), classroom(2, 90)},
		Professors: []model.Professor{lecturer},
		Demands:    []model.Demand{demand(1, 30, 1, slot(0, 0))},
		Catalog:    testCatalog(t),
	}

	withDefaults, err := NewEngine().Run(context.Background(), input)
	require.NoError(t, err)

	tightOnly, err := NewWeights(0, 0, 1)
	require.NoError(t, err)
	withTightness, err := NewEngine(WithWeights(tightOnly)).Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), placedRooms(withDefaults)[1])
	assert.Equal(t, uint64(1), placedRooms(withTightness)[1])
	assert.NotEqual(t, withDefaults.RunID, withTightness.RunID)
}

func TestRunPriorityOrder(t *testing.T) {
	demands := []model.Demand{demand(3, 10, 1), demand(1, 50, 2), demand(2, 50, 3), demand(4, 10, 4)}
	demands[3].Priority = 2

	prioritize(demands)

	assert.Equal(t, []uint64{4, 1, 2, 3}, lo.Map(demands, func(demand model.Demand, _ int) uint64 { return demand.Id }))
}

func TestRunRejectsInvalidInput(t *testing.T) {
	report, err := NewEngine().Run(context.Background(), Input{
		Rooms:      []model.Room{classroom(1, 30)},
		Professors: []model.Professor{professor(1)},
		Demands:    []model.Demand{demand(1, 10, 2, slot(0, 0))},
		Catalog:    testCatalog(t),
	})

	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrInvalidInput)
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "demands[0]", inputErr.Field)
}

func TestRunKeepsPinnedRecords(t *testing.T) {
	//** Arrange
	pinned := []model.AllocationRecord{
		pinnedRecord(1, 1, 1, slot(0, 0), slot(2, 0)),
		pinnedRecord(50, 2, 2, slot(0, 0)), // Demand not part of this run's snapshot
	}
	input := Input{
		Rooms:      []model.Room{classroom(1, 30), classroom(2, 30)},
		Professors: []model.Professor{professor(1), professor(2)},
		Demands:    []model.Demand{demand(1, 20, 1, slot(4, 3)), demand(2, 20, 2, slot(2, 0))},
		Pinned:     pinned,
		Catalog:    testCatalog(t),
	}

	//** Act
	report, err := NewEngine().Run(context.Background(), input)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Empty(t, report.Unplaced)
	assert.Empty(t, report.Conflicts)
	for _, record := range pinned {
		assert.Contains(t, report.Records, record, "pinned records are kept unchanged")
	}
	// Room 1 is pinned on Wednesday so demand 2 lands in room 2
	assert.Equal(t, uint64(2), placedRooms(report)[2])
}

func TestRunRejectsCollidingPins(t *testing.T) {
	_, err := NewEngine().Run(context.Background(), Input{
		Rooms:      []model.Room{classroom(1, 30)},
		Professors: []model.Professor{professor(1), professor(2)},
		Pinned: []model.AllocationRecord{
			pinnedRecord(1, 1, 1, slot(0, 0)),
			pinnedRecord(2, 1, 2, slot(0, 0)),
		},
		Catalog: testCatalog(t),
	})

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "pinned[1]", inputErr.Field)
}

func TestRunPinningIsIdempotent(t *testing.T) {
	//** Arrange
	input := randomInput(t, rand.New(rand.NewPCG(7, 7)))
	first, err := NewEngine().Run(context.Background(), input)
	require.NoError(t, err)

	//** Act
	input.Pinned = lo.Map(first.Records, func(record model.AllocationRecord, _ int) model.AllocationRecord {
		record.Pinned = true
		return record
	})
	second, err := NewEngine().Run(context.Background(), input)
	require.NoError(t, err)

	//** Assert
	assert.Equal(t, input.Pinned, second.Records)
	assert.Empty(t, second.Conflicts)
	assert.Equal(t, first.Unplaced, second.Unplaced)
	assert.Equal(t, first.Total, second.Total)
}

func TestRunIsDeterministic(t *testing.T) {
	input := randomInput(t, rand.New(rand.NewPCG(11, 3)))

	first, err := NewEngine(WithContentionAnalysis(true)).Run(context.Background(), input)
	require.NoError(t, err)
	second, err := NewEngine(WithContentionAnalysis(true)).Run(context.Background(), input)
	require.NoError(t, err)

	firstJson, err := json.Marshal(first)
	require.NoError(t, err)
	secondJson, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJson), string(secondJson))
}

// Invariants checked over many random instances
func TestRunProperties(t *testing.T) {
	for seed := range uint64(25) {
		input := randomInput(t, rand.New(rand.NewPCG(seed, 42)))
		rooms, professors, demands := model.RoomsById(input.Rooms), model.ProfessorsById(input.Professors), model.DemandsById(input.Demands)

		report, err := NewEngine().Run(context.Background(), input)
		require.NoError(t, err)

		// No double booking
		assert.Empty(t, FindConflicts(report.Records), "seed %v", seed)
		assert.True(t, report.Consistent())
		assert.Equal(t, len(input.Demands), report.Total)

		for _, record := range report.Records {
			demand, room, professor := demands[record.Demand], rooms[record.Room], professors[record.Professor]

			// Hard constraints
			assert.GreaterOrEqual(t, room.Capacity, demand.Enrollment)
			assert.True(t, demand.RoomType == model.RoomTypeAny || demand.RoomType == room.Type)
			assert.True(t, room.Characteristics.ContainsAll(demand.Characteristics))
			assert.True(t, !professor.RequiresAccessibleRoom || room.Characteristics.Has(model.AccessibleEntrance))

			// Pattern integrity
			assert.Equal(t, demand.Pattern, record.Slots)
			assert.Equal(t, demand.Professor, record.Professor)
		}
	}
}

// Shrinking the room inventory never turns a demand without eligible rooms into an eligible one, and dropping a
// room nobody was placed in leaves the allocation unchanged
func TestRunMonotonicUnplaceability(t *testing.T) {
	for seed := range uint64(25) {
		random := rand.New(rand.NewPCG(seed, 99))
		input := randomInput(t, random)

		full, err := NewEngine().Run(context.Background(), input)
		require.NoError(t, err)

		//** Shrink capacities and drop a room
		shrunk := input
		shrunk.Rooms = lo.Map(input.Rooms[1:], func(room model.Room, _ int) model.Room {
			room.Capacity = max(1, room.Capacity-uint64(random.IntN(20)))
			return room
		})
		reduced, err := NewEngine().Run(context.Background(), shrunk)
		require.NoError(t, err)

		for demand, reason := range unplacedReasons(full) {
			if reason == NoEligibleRoom {
				assert.Equal(t, NoEligibleRoom, unplacedReasons(reduced)[demand], "seed %v demand %v", seed, demand)
			}
		}

		//** Drop an unused room
		used := lo.Uniq(lo.Map(full.Records, func(record model.AllocationRecord, _ int) uint64 { return record.Room }))
		unused, ok := lo.Find(input.Rooms, func(room model.Room) bool { return !slices.Contains(used, room.Id) })
		if !ok {
			continue
		}
		trimmed := input
		trimmed.Rooms = lo.Filter(input.Rooms, func(room model.Room, _ int) bool { return room.Id != unused.Id })
		withoutUnused, err := NewEngine().Run(context.Background(), trimmed)
		require.NoError(t, err)

		assert.Equal(t, full.Records, withoutUnused.Records, "seed %v", seed)
		assert.Equal(t, full.PlacedCount(), withoutUnused.PlacedCount())
	}
}

type cancellingObserver struct {
	nopObserver
	cancel context.CancelFunc
}

func (observer cancellingObserver) DemandPlaced(uint64, uint64) {
	observer.cancel()
}

func TestRunAbortsBetweenDemands(t *testing.T) {
	//** Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	input := Input{
		Rooms:      []model.Room{classroom(1, 30), classroom(2, 30)},
		Professors: []model.Professor{professor(1)},
		Demands:    []model.Demand{demand(1, 30, 1, slot(0, 0)), demand(2, 20, 1, slot(1, 0)), demand(3, 10, 1, slot(2, 0))},
		Catalog:    testCatalog(t),
	}

	//** Act
	report, err := NewEngine(WithObserver(cancellingObserver{cancel: cancel})).Run(ctx, input)

	//** Assert
	assert.ErrorIs(t, err, ErrRunAborted)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, map[uint64]uint64{1: 1}, placedRooms(report))
	assert.Equal(t, map[uint64]UnplacedReason{2: RunAborted, 3: RunAborted}, unplacedReasons(report))
}

type sleepingObserver struct {
	nopObserver
}

func (sleepingObserver) DemandPlaced(uint64, uint64) {
	time.Sleep(5 * time.Millisecond)
}

func TestRunBudget(t *testing.T) {
	input := Input{
		Rooms:      []model.Room{classroom(1, 30)},
		Professors: []model.Professor{professor(1)},
		Demands:    []model.Demand{demand(1, 30, 1, slot(0, 0)), demand(2, 20, 1, slot(1, 0))},
		Catalog:    testCatalog(t),
	}

	report, err := NewEngine(WithBudget(time.Nanosecond), WithObserver(sleepingObserver{})).Run(context.Background(), input)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Equal(t, RunAborted, unplacedReasons(report)[2])
}

type recordingObserver struct {
	mutex     sync.Mutex
	placed    []uint64
	unplaced  map[uint64]UnplacedReason
	completed *Report
}

func (observer *recordingObserver) DemandPlaced(demand uint64, _ uint64) {
	observer.mutex.Lock()
	defer observer.mutex.Unlock()
	observer.placed = append(observer.placed, demand)
}

func (observer *recordingObserver) DemandUnplaced(demand uint64, reason UnplacedReason) {
	observer.mutex.Lock()
	defer observer.mutex.Unlock()
	observer.unplaced[demand] = reason
}

func (observer *recordingObserver) RunCompleted(report *Report, _ time.Duration) {
	observer.completed = report
}

func TestRunNotifiesObserverAndLogs(t *testing.T) {
	//** Arrange
	core, logs := observer.New(zap.DebugLevel)
	recorder := &recordingObserver{unplaced: make(map[uint64]UnplacedReason)}
	input := Input{
		Semester:   "2026-1",
		Rooms:      []model.Room{classroom(1, 30)},
		Professors: []model.Professor{professor(1)},
		Demands:    []model.Demand{demand(1, 30, 1, slot(0, 0)), demand(2, 300, 1, slot(1, 0))},
		Catalog:    testCatalog(t),
	}

	//** Act
	report, err := NewEngine(WithLogger(zap.New(core)), WithObserver(recorder)).Run(context.Background(), input)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, recorder.placed)
	assert.Equal(t, map[uint64]UnplacedReason{2: NoEligibleRoom}, recorder.unplaced)
	assert.Same(t, report, recorder.completed)
	assert.Equal(t, 1, logs.FilterMessage("placed demand").Len())
	assert.Equal(t, 1, logs.FilterMessage("demand left unplaced").Len())
	assert.Equal(t, 1, logs.FilterMessage("finished allocation run").FilterField(zap.String("semester", "2026-1")).Len())
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	engine := NewEngine()
	input := randomInput(t, rand.New(rand.NewPCG(5, 5)))
	expected, err := engine.Run(context.Background(), input)
	require.NoError(t, err)

	var wg sync.WaitGroup
	reports := make([]*Report, 8)
	for i := range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i], _ = engine.Run(context.Background(), input)
		}()
	}
	wg.Wait()

	for _, report := range reports {
		assert.Equal(t, expected, report)
	}
}

// randomInput builds a mid-sized instance with some demands that cannot be placed
func randomInput(t *testing.T, random *rand.Rand) Input {
	t.Helper()
	catalog := testCatalog(t)
	characteristics := []model.Characteristic{model.Projector, model.AccessibleEntrance, model.Whiteboard, model.Computers}

	pick := func() model.CharacteristicSet {
		var set model.CharacteristicSet
		for _, characteristic := range characteristics {
			if random.IntN(3) == 0 {
				set = set.With(characteristic)
			}
		}
		return set
	}

	rooms := make([]model.Room, 0)
	for id := range uint64(8) {
		rooms = append(rooms, model.Room{
			Id:              id + 1,
			Name:            "Room",
			Capacity:        uint64(20 + random.IntN(80)),
			Type:            model.RoomTypes[random.IntN(2)],
			Characteristics: pick(),
		})
	}

	professors := make([]model.Professor, 0)
	for id := range uint64(6) {
		professors = append(professors, model.Professor{
			Id:                       id + 1,
			RequiresAccessibleRoom:   random.IntN(5) == 0,
			PreferredRooms:           []uint64{uint64(1 + random.IntN(8)), uint64(1 + random.IntN(8))},
			PreferredCharacteristics: []model.Characteristic{characteristics[random.IntN(len(characteristics))]},
		})
	}
	// Duplicated preferences are harmless but keep the list tidy
	for i := range professors {
		professors[i].PreferredRooms = lo.Uniq(professors[i].PreferredRooms)
	}

	demands := make([]model.Demand, 0)
	slots := catalog.Slots()
	for id := range uint64(30) {
		pattern := lo.Uniq([]model.TimeSlot{slots[random.IntN(6)], slots[random.IntN(6)]})
		demands = append(demands, model.Demand{
			Id:              id + 1,
			Enrollment:      uint64(10 + random.IntN(90)),
			RoomType:        []model.RoomType{model.RoomTypeAny, model.Classroom, model.Laboratory}[random.IntN(3)],
			Characteristics: pick() & model.NewCharacteristicSet(model.Projector, model.Computers),
			Professor:       uint64(1 + random.IntN(6)),
			Pattern:         pattern,
			Priority:        random.IntN(2),
		})
	}

	return Input{Semester: "test", Rooms: rooms, Professors: professors, Demands: demands, Catalog: catalog}
}

// intrudingIndex lets demand intruder take a room at slot right before the engine reserves it there
type intrudingIndex struct {
	*AvailabilityIndex
	slot     model.TimeSlot
	intruder uint64
}

func (index intrudingIndex) Reserve(room, professor uint64, slot model.TimeSlot, demand uint64) error {
	if slot == index.slot && index.IsRoomFree(room, slot) {
		if err := index.AvailabilityIndex.Reserve(room, 99, slot, index.intruder); err != nil {
			return err
		}
	}
	return index.AvailabilityIndex.Reserve(room, professor, slot, demand)
}

func TestPlaceReleasesPartialReservation(t *testing.T) {
	//** Arrange
	index := NewAvailabilityIndex(testCatalog(t))
	run := &allocationRun{
		engine:  NewEngine(),
		logger:  zap.NewNop(),
		lookup:  lookups{professors: map[uint64]model.Professor{1: professor(1)}},
		scorer:  scorer{weights: DefaultWeights()},
		index:   intrudingIndex{AvailabilityIndex: index, slot: slot(0, 1), intruder: 50},
		states:  map[uint64]DemandState{1: Pending},
		builder: newReportBuilder("", ""),
	}

	//** Act
	err := run.place(demand(1, 20, 1, slot(0, 0), slot(0, 1)), []model.Room{classroom(1, 30)})

	//** Assert
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, RoomDoubleBooking, conflict.Kind)
	assert.Equal(t, uint64(50), conflict.Holder)
	assert.Equal(t, uint64(1), conflict.Demand)

	assert.True(t, index.IsRoomFree(1, slot(0, 0)))
	assert.True(t, index.IsProfessorFree(1, slot(0, 0)))
	holder, occupied := index.Occupant(1, slot(0, 1))
	assert.True(t, occupied)
	assert.Equal(t, uint64(50), holder)
	assert.Empty(t, run.builder.Build().Placed)
}

func TestRunFailsOnInternalConsistency(t *testing.T) {
	//** Arrange
	engine := NewEngine()
	engine.wrapIndex = func(index *AvailabilityIndex) reservations {
		return intrudingIndex{AvailabilityIndex: index, slot: slot(2, 3), intruder: 50}
	}
	input := Input{
		Rooms:      []model.Room{classroom(1, 30)},
		Professors: []model.Professor{professor(1)},
		Demands:    []model.Demand{demand(1, 20, 1, slot(2, 2), slot(2, 3))},
		Catalog:    testCatalog(t),
	}

	//** Act
	report, err := engine.Run(context.Background(), input)

	//** Assert
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrInternalConsistency)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestRunCopiesPinnedRecordsVerbatim(t *testing.T) {
	record := pinnedRecord(1, 1, 1, slot(3, 2), slot(1, 0))
	input := Input{
		Rooms:      []model.Room{classroom(1, 30)},
		Professors: []model.Professor{professor(1)},
		Pinned:     []model.AllocationRecord{record},
		Catalog:    testCatalog(t),
	}

	report, err := NewEngine().Run(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, []model.AllocationRecord{record}, report.Records)
}
