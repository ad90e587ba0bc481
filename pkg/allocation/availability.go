package allocation

import (
	"github.com/limaJavier/roomallocation/pkg/model"
)

type resourceSlot struct {
	resource uint64
	slot     uint64 // Catalog ordinal
}

// AvailabilityIndex tracks which rooms and professors are occupied at each slot. It belongs to a single
// allocation run and is not safe for concurrent use.
type AvailabilityIndex struct {
	catalog    model.Catalog
	rooms      map[resourceSlot]uint64 // (room, slot) -> demand
	professors map[resourceSlot]uint64 // (professor, slot) -> demand
}

func NewAvailabilityIndex(catalog model.Catalog) *AvailabilityIndex {
	return &AvailabilityIndex{
		catalog:    catalog,
		rooms:      make(map[resourceSlot]uint64),
		professors: make(map[resourceSlot]uint64),
	}
}

// Slots outside the catalog are never free
func (index *AvailabilityIndex) IsRoomFree(room uint64, slot model.TimeSlot) bool {
	key, ok := index.key(room, slot)
	if !ok {
		return false
	}
	_, occupied := index.rooms[key]
	return !occupied
}

func (index *AvailabilityIndex) IsProfessorFree(professor uint64, slot model.TimeSlot) bool {
	key, ok := index.key(professor, slot)
	if !ok {
		return false
	}
	_, occupied := index.professors[key]
	return !occupied
}

// Reserve marks room and professor as busy at slot on behalf of demand. When either is already taken a
// *ConflictError is returned and nothing changes.
func (index *AvailabilityIndex) Reserve(room, professor uint64, slot model.TimeSlot, demand uint64) error {
	roomKey, ok := index.key(room, slot)
	if !ok {
		return inputErrorf("slot", "%v is not part of the time-slot catalog", slot)
	}
	professorKey, _ := index.key(professor, slot)

	if holder, occupied := index.rooms[roomKey]; occupied {
		return &ConflictError{Kind: RoomDoubleBooking, Slot: slot, Room: room, Professor: professor, Holder: holder, Demand: demand}
	}
	if holder, occupied := index.professors[professorKey]; occupied {
		return &ConflictError{Kind: ProfessorDoubleBooking, Slot: slot, Room: room, Professor: professor, Holder: holder, Demand: demand}
	}

	index.rooms[roomKey] = demand
	index.professors[professorKey] = demand
	return nil
}

func (index *AvailabilityIndex) Release(room, professor uint64, slot model.TimeSlot) {
	roomKey, ok := index.key(room, slot)
	if !ok {
		return
	}
	professorKey, _ := index.key(professor, slot)
	delete(index.rooms, roomKey)
	delete(index.professors, professorKey)
}

// Occupant returns the demand holding room at slot
func (index *AvailabilityIndex) Occupant(room uint64, slot model.TimeSlot) (uint64, bool) {
	key, ok := index.key(room, slot)
	if !ok {
		return 0, false
	}
	demand, occupied := index.rooms[key]
	return demand, occupied
}

// Free checks whether room and professor are both available at every slot
func (index *AvailabilityIndex) Free(room, professor uint64, slots []model.TimeSlot) bool {
	for _, slot := range slots {
		if !index.IsRoomFree(room, slot) || !index.IsProfessorFree(professor, slot) {
			return false
		}
	}
	return true
}

func (index *AvailabilityIndex) key(resource uint64, slot model.TimeSlot) (resourceSlot, bool) {
	ordinal, ok := index.catalog.Index(slot)
	if !ok {
		return resourceSlot{}, false
	}
	return resourceSlot{resource: resource, slot: ordinal}, true
}
