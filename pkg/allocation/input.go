package allocation

import (
	"fmt"

	"github.com/limaJavier/roomallocation/pkg/model"
)

// Input is everything one allocation run consumes
type Input struct {
	Semester   string
	Rooms      []model.Room
	Professors []model.Professor
	Demands    []model.Demand
	Pinned     []model.AllocationRecord
	Catalog    model.Catalog
}

func InputFromSnapshot(snapshot model.Snapshot, catalog model.Catalog) Input {
	return Input{
		Semester:   snapshot.Semester,
		Rooms:      snapshot.Rooms,
		Professors: snapshot.Professors,
		Demands:    snapshot.Demands,
		Pinned:     snapshot.Pinned,
		Catalog:    catalog,
	}
}

// lookups are the id-keyed views of a validated input
type lookups struct {
	rooms      map[uint64]model.Room
	professors map[uint64]model.Professor
	demands    map[uint64]model.Demand
}

// validateInput checks struct constraints and referential integrity. Professors' preferred rooms that are
// not in the inventory are tolerated, the inventory may legitimately shrink between runs.
func validateInput(input Input) (lookups, error) {
	if input.Catalog.Empty() {
		return lookups{}, inputErrorf("catalog", "time-slot catalog is empty")
	}

	rooms := make(map[uint64]model.Room, len(input.Rooms))
	for i, room := range input.Rooms {
		field := fmt.Sprintf("rooms[%v]", i)
		if err := model.Validate(room); err != nil {
			return lookups{}, inputErrorf(field, "%v", err)
		}
		if _, ok := rooms[room.Id]; ok {
			return lookups{}, inputErrorf(field, "duplicate room id %v", room.Id)
		}
		rooms[room.Id] = room
	}

	professors := make(map[uint64]model.Professor, len(input.Professors))
	for i, professor := range input.Professors {
		if _, ok := professors[professor.Id]; ok {
			return lookups{}, inputErrorf(fmt.Sprintf("professors[%v]", i), "duplicate professor id %v", professor.Id)
		}
		professors[professor.Id] = professor
	}

	demands := make(map[uint64]model.Demand, len(input.Demands))
	for i, demand := range input.Demands {
		field := fmt.Sprintf("demands[%v]", i)
		if err := model.Validate(demand); err != nil {
			return lookups{}, inputErrorf(field, "%v", err)
		}
		if _, ok := demands[demand.Id]; ok {
			return lookups{}, inputErrorf(field, "duplicate demand id %v", demand.Id)
		}
		if _, ok := professors[demand.Professor]; !ok {
			return lookups{}, inputErrorf(field, "demand %v references unknown professor %v", demand.Id, demand.Professor)
		}
		if err := validatePattern(input.Catalog, demand.Pattern); err != nil {
			return lookups{}, inputErrorf(field+".pattern", "%v", err)
		}
		demands[demand.Id] = demand
	}

	pinnedDemands := make(map[uint64]bool, len(input.Pinned))
	for i, record := range input.Pinned {
		field := fmt.Sprintf("pinned[%v]", i)
		if err := model.Validate(record); err != nil {
			return lookups{}, inputErrorf(field, "%v", err)
		}
		if !record.Pinned {
			return lookups{}, inputErrorf(field, "record for demand %v is listed as pinned but not flagged pinned", record.Demand)
		}
		if pinnedDemands[record.Demand] {
			return lookups{}, inputErrorf(field, "demand %v is pinned more than once", record.Demand)
		}
		pinnedDemands[record.Demand] = true
		if _, ok := rooms[record.Room]; !ok {
			return lookups{}, inputErrorf(field, "pinned record references unknown room %v", record.Room)
		}
		if _, ok := professors[record.Professor]; !ok {
			return lookups{}, inputErrorf(field, "pinned record references unknown professor %v", record.Professor)
		}
		if demand, ok := demands[record.Demand]; ok && demand.Professor != record.Professor {
			return lookups{}, inputErrorf(field, "pinned record assigns professor %v but demand %v is taught by %v", record.Professor, record.Demand, demand.Professor)
		}
		if err := validatePattern(input.Catalog, record.Slots); err != nil {
			return lookups{}, inputErrorf(field+".slots", "%v", err)
		}
	}

	return lookups{rooms: rooms, professors: professors, demands: demands}, nil
}

func validatePattern(catalog model.Catalog, slots []model.TimeSlot) error {
	seen := make(map[model.TimeSlot]bool, len(slots))
	for _, slot := range slots {
		if !catalog.Contains(slot) {
			return fmt.Errorf("%v is not part of the time-slot catalog", slot)
		}
		if seen[slot] {
			return fmt.Errorf("%v is requested more than once", catalog.Label(slot))
		}
		seen[slot] = true
	}
	return nil
}
