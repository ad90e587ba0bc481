package allocation

import (
	"fmt"
	"testing"

	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) model.Catalog {
	t.Helper()
	catalog, err := model.NewCatalog(
		[]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		[]string{"Block1", "Block2", "Block3", "Block4"},
	)
	require.NoError(t, err)
	return catalog
}

func slot(day, block uint64) model.TimeSlot {
	return model.TimeSlot{Day: day, Block: block}
}

func classroom(id, capacity uint64, characteristics ...model.Characteristic) model.Room {
	return model.Room{
		Id:              id,
		Name:            fmt.Sprintf("Room %v", id),
		Capacity:        capacity,
		Type:            model.Classroom,
		Characteristics: model.NewCharacteristicSet(characteristics...),
	}
}

func professor(id uint64) model.Professor {
	return model.Professor{Id: id, Name: fmt.Sprintf("Professor %v", id)}
}

func demand(id, enrollment, professor uint64, pattern ...model.TimeSlot) model.Demand {
	return model.Demand{
		Id:         id,
		Name:       fmt.Sprintf("Course %v", id),
		Enrollment: enrollment,
		Professor:  professor,
		Pattern:    pattern,
	}
}

func pinnedRecord(demand, room, professor uint64, slots ...model.TimeSlot) model.AllocationRecord {
	return model.AllocationRecord{Demand: demand, Room: room, Professor: professor, Slots: slots, Pinned: true}
}

func placedRooms(report *Report) map[uint64]uint64 {
	rooms := make(map[uint64]uint64, len(report.Placed))
	for _, placement := range report.Placed {
		rooms[placement.Demand] = placement.Room
	}
	return rooms
}

func unplacedReasons(report *Report) map[uint64]UnplacedReason {
	reasons := make(map[uint64]UnplacedReason, len(report.Unplaced))
	for _, unplacement := range report.Unplaced {
		reasons[unplacement.Demand] = unplacement.Reason
	}
	return reasons
}
