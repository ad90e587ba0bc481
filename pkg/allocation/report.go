package allocation

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/google/uuid"
	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type Placement struct {
	Demand    uint64           `json:"demand"`
	Room      uint64           `json:"room"`
	Professor uint64           `json:"professor"`
	Slots     []model.TimeSlot `json:"slots"`
	Score     decimal.Decimal  `json:"score"` // Zero for pinned placements
	Pinned    bool             `json:"pinned"`
}

type Unplacement struct {
	Demand        uint64         `json:"demand"`
	Reason        UnplacedReason `json:"reason"`
	EligibleRooms int            `json:"eligibleRooms"`
}

// Report is the outcome of one allocation run. It is built once and must be treated as read-only.
type Report struct {
	RunID      string                   `json:"runId"`
	Semester   string                   `json:"semester,omitempty"`
	Total      int                      `json:"total"`
	Placed     []Placement              `json:"placed"`
	Unplaced   []Unplacement            `json:"unplaced"`
	Records    []model.AllocationRecord `json:"records"`
	Conflicts  []Conflict               `json:"conflicts"`
	Contention []SlotContention         `json:"contention,omitempty"`
	Aborted    bool                     `json:"aborted"`
}

func (report *Report) PlacedCount() int {
	return len(report.Placed)
}

func (report *Report) UnplacedCount() int {
	return len(report.Unplaced)
}

// Consistent reports whether every demand was accounted for and the records are free of double bookings
func (report *Report) Consistent() bool {
	return len(report.Conflicts) == 0 && report.Total == len(report.Placed)+len(report.Unplaced)
}

// UnplacedBy groups unplaced demand ids by reason
func (report *Report) UnplacedBy() map[UnplacedReason][]uint64 {
	grouped := lo.GroupBy(report.Unplaced, func(unplacement Unplacement) UnplacedReason { return unplacement.Reason })
	return lo.MapValues(grouped, func(unplacements []Unplacement, _ UnplacedReason) []uint64 {
		return lo.Map(unplacements, func(unplacement Unplacement, _ int) uint64 { return unplacement.Demand })
	})
}

type reportBuilder struct {
	runID      string
	semester   string
	placed     []Placement
	unplaced   []Unplacement
	contention []SlotContention
	aborted    bool
}

func newReportBuilder(runID, semester string) *reportBuilder {
	return &reportBuilder{
		runID:    runID,
		semester: semester,
		placed:   make([]Placement, 0),
		unplaced: make([]Unplacement, 0),
	}
}

func (builder *reportBuilder) AddPlacement(placement Placement) {
	placement.Slots = slices.Clone(placement.Slots)
	builder.placed = append(builder.placed, placement)
}

func (builder *reportBuilder) AddUnplacement(unplacement Unplacement) {
	builder.unplaced = append(builder.unplaced, unplacement)
}

func (builder *reportBuilder) SetContention(contention []SlotContention) {
	builder.contention = slices.Clone(contention)
}

func (builder *reportBuilder) SetAborted(aborted bool) {
	builder.aborted = aborted
}

// Build sorts every list, derives the records and audits them. The builder may keep being used afterwards
// without affecting the returned report.
func (builder *reportBuilder) Build() *Report {
	placed := slices.Clone(builder.placed)
	slices.SortFunc(placed, func(a, b Placement) int { return cmp.Compare(a.Demand, b.Demand) })

	unplaced := slices.Clone(builder.unplaced)
	slices.SortFunc(unplaced, func(a, b Unplacement) int { return cmp.Compare(a.Demand, b.Demand) })

	records := lo.Map(placed, func(placement Placement, _ int) model.AllocationRecord {
		return model.AllocationRecord{
			Demand:    placement.Demand,
			Room:      placement.Room,
			Professor: placement.Professor,
			Slots:     slices.Clone(placement.Slots),
			Pinned:    placement.Pinned,
		}
	})

	contention := slices.Clone(builder.contention)
	if contention != nil {
		slices.SortFunc(contention, func(a, b SlotContention) int { return a.Slot.Compare(b.Slot) })
	}

	return &Report{
		RunID:      builder.runID,
		Semester:   builder.semester,
		Total:      len(placed) + len(unplaced),
		Placed:     placed,
		Unplaced:   unplaced,
		Records:    records,
		Conflicts:  FindConflicts(records),
		Contention: contention,
		Aborted:    builder.aborted,
	}
}

var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("github.com/limaJavier/roomallocation/run"))

// runID derives a name-based UUID from everything that determines the outcome of a run, so identical runs
// produce identical reports.
func runID(input Input, weights Weights) string {
	canonical := struct {
		Semester   string                   `json:"semester"`
		Days       []string                 `json:"days"`
		Blocks     []string                 `json:"blocks"`
		Rooms      []model.Room             `json:"rooms"`
		Professors []model.Professor        `json:"professors"`
		Demands    []model.Demand           `json:"demands"`
		Pinned     []model.AllocationRecord `json:"pinned"`
		Weights    []decimal.Decimal        `json:"weights"`
	}{
		Semester:   input.Semester,
		Days:       input.Catalog.Days,
		Blocks:     input.Catalog.Blocks,
		Rooms:      input.Rooms,
		Professors: input.Professors,
		Demands:    input.Demands,
		Pinned:     input.Pinned,
		Weights:    []decimal.Decimal{weights.Room, weights.Characteristic, weights.Tightness},
	}

	bytes, err := json.Marshal(canonical)
	if err != nil {
		// Every field marshals, a failure here means a model type broke its JSON contract
		panic(err)
	}
	return uuid.NewSHA1(runNamespace, bytes).String()
}
