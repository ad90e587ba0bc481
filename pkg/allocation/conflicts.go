package allocation

import (
	"cmp"
	"slices"

	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/samber/lo"
)

type ConflictKind string

const (
	RoomDoubleBooking      ConflictKind = "ROOM_DOUBLE_BOOKING"
	ProfessorDoubleBooking ConflictKind = "PROFESSOR_DOUBLE_BOOKING"
)

// Conflict is a room or a professor holding more than one demand at the same slot. Resource is a room id for
// RoomDoubleBooking and a professor id for ProfessorDoubleBooking.
type Conflict struct {
	Kind     ConflictKind   `json:"kind"`
	Slot     model.TimeSlot `json:"slot"`
	Resource uint64         `json:"resource"`
	Demands  []uint64       `json:"demands"`
}

type occupancyKey struct {
	resource uint64
	slot     model.TimeSlot
}

// FindConflicts re-derives room and professor occupancy from the records and reports every double booking.
// Records belonging to the same demand never conflict with each other. The result is ordered by slot, then
// kind, then resource, and is empty for a consistent allocation.
func FindConflicts(records []model.AllocationRecord) []Conflict {
	//** Derive occupancy
	roomAssistance := make(map[occupancyKey][]uint64)
	professorAssistance := make(map[occupancyKey][]uint64)
	for _, record := range records {
		for _, slot := range record.Slots {
			roomKey := occupancyKey{resource: record.Room, slot: slot}
			if !slices.Contains(roomAssistance[roomKey], record.Demand) {
				roomAssistance[roomKey] = append(roomAssistance[roomKey], record.Demand)
			}

			professorKey := occupancyKey{resource: record.Professor, slot: slot}
			if !slices.Contains(professorAssistance[professorKey], record.Demand) {
				professorAssistance[professorKey] = append(professorAssistance[professorKey], record.Demand)
			}
		}
	}

	//** Collect double bookings
	conflicts := make([]Conflict, 0)
	collect := func(kind ConflictKind, assistance map[occupancyKey][]uint64) {
		for key, demands := range assistance {
			if len(demands) < 2 {
				continue
			}
			sorted := slices.Clone(demands)
			slices.Sort(sorted)
			conflicts = append(conflicts, Conflict{Kind: kind, Slot: key.slot, Resource: key.resource, Demands: sorted})
		}
	}
	collect(RoomDoubleBooking, roomAssistance)
	collect(ProfessorDoubleBooking, professorAssistance)

	slices.SortFunc(conflicts, compareConflicts)
	return conflicts
}

// ValidateAllocations checks an externally edited allocation set for double bookings. It is pure: the same
// records always yield the same conflicts.
func ValidateAllocations(records []model.AllocationRecord) []Conflict {
	return FindConflicts(records)
}

func compareConflicts(a, b Conflict) int {
	if order := a.Slot.Compare(b.Slot); order != 0 {
		return order
	}
	if order := cmp.Compare(kindOrder(a.Kind), kindOrder(b.Kind)); order != 0 {
		return order
	}
	return cmp.Compare(a.Resource, b.Resource)
}

func kindOrder(kind ConflictKind) int {
	return lo.IndexOf([]ConflictKind{RoomDoubleBooking, ProfessorDoubleBooking}, kind)
}

// Demands involved in at least one conflict
func conflictingDemands(conflicts []Conflict) []uint64 {
	demands := lo.Uniq(lo.FlatMap(conflicts, func(conflict Conflict, _ int) []uint64 { return conflict.Demands }))
	slices.Sort(demands)
	return demands
}
