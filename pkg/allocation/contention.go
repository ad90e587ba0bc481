package allocation

import (
	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
)

// SlotContention describes a slot where more demands ask for a room than can possibly be seated at once
type SlotContention struct {
	Slot      model.TimeSlot `json:"slot"`
	Label     string         `json:"label"`
	Requested int            `json:"requested"` // Non-pinned demands whose pattern contains the slot
	Placeable int            `json:"placeable"` // Size of a maximum demand-room matching at the slot
	FreeRooms int            `json:"freeRooms"` // Rooms not held by a pinned record at the slot
}

// AnalyzeContention computes, slot by slot, the maximum number of requesting demands that could be seated
// simultaneously given eligibility and pinned occupancy. Only bottleneck slots (Placeable < Requested) are
// returned, ordered by slot. Professor double-requests within a slot are not accounted for.
func AnalyzeContention(input Input) ([]SlotContention, error) {
	lookup, err := validateInput(input)
	if err != nil {
		return nil, err
	}
	index, err := reservePinned(input)
	if err != nil {
		return nil, err
	}
	return analyzeContention(input, lookup, index)
}

func analyzeContention(input Input, lookup lookups, index *AvailabilityIndex) ([]SlotContention, error) {
	evaluator := newPredicateEvaluator()
	pinned := pinnedDemands(input.Pinned)

	//** Group requesting demands by slot
	requests := make(map[model.TimeSlot][]model.Demand)
	for _, demand := range input.Demands {
		if pinned[demand.Id] {
			continue
		}
		for _, slot := range demand.Pattern {
			requests[slot] = append(requests[slot], demand)
		}
	}

	contention := make([]SlotContention, 0)
	for _, slot := range input.Catalog.Slots() {
		demands := requests[slot]
		if len(demands) == 0 {
			continue
		}

		freeRooms := lo.Filter(input.Rooms, func(room model.Room, _ int) bool { return index.IsRoomFree(room.Id, slot) })

		placeable := 0
		if len(freeRooms) > 0 {
			// Build neighbors predicate based on eligibility and professor availability
			neighbors := func(demandAny any, roomAny any) (bool, error) {
				demand := demandAny.(model.Demand)
				room := roomAny.(model.Room)
				professor := lookup.professors[demand.Professor]

				return index.IsProfessorFree(demand.Professor, slot) && eligible(evaluator, demand, professor, room), nil
			}

			demandsAny, roomsAny := lo.Map(demands, func(demand model.Demand, _ int) any { return demand }), lo.Map(freeRooms, func(room model.Room, _ int) any { return room })

			graph, err := bipartitegraph.NewBipartiteGraph(demandsAny, roomsAny, neighbors)
			if err != nil {
				return nil, err
			}
			placeable = len(graph.LargestMatching())
		}

		if placeable < len(demands) {
			contention = append(contention, SlotContention{
				Slot:      slot,
				Label:     input.Catalog.Label(slot),
				Requested: len(demands),
				Placeable: placeable,
				FreeRooms: len(freeRooms),
			})
		}
	}

	return contention, nil
}
