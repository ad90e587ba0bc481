package main

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/samber/lo"

	"github.com/limaJavier/roomallocation/pkg/model"
)

// Shape of the default catalog the CLI runs with
const (
	catalogDays   = 5
	catalogBlocks = 6
)

type InstanceSize struct {
	Name       string
	Rooms      int
	Professors int
	Demands    int
}

var instanceSizes = []InstanceSize{
	{Name: "small", Rooms: 10, Professors: 15, Demands: 40},
	{Name: "medium", Rooms: 40, Professors: 60, Demands: 250},
	{Name: "large", Rooms: 120, Professors: 200, Demands: 900},
}

// generateSnapshot builds a random but reproducible snapshot. Enrollments and room capacities are drawn from the
// same range so some demands do not fit anywhere.
func generateSnapshot(size InstanceSize, seed uint64) model.Snapshot {
	random := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	rooms := make([]model.Room, 0, size.Rooms)
	for id := range size.Rooms {
		rooms = append(rooms, model.Room{
			Id:              uint64(id + 1),
			Name:            fmt.Sprintf("R-%03d", id+1),
			Capacity:        uint64(10 + random.IntN(140)),
			Type:            model.RoomTypes[random.IntN(len(model.RoomTypes))],
			Characteristics: randomCharacteristics(random, 4),
			Building:        string(rune('A' + random.IntN(4))),
		})
	}

	professors := make([]model.Professor, 0, size.Professors)
	for id := range size.Professors {
		preferred := lo.Map(random.Perm(size.Rooms)[:random.IntN(min(3, size.Rooms+1))], func(index int, _ int) uint64 {
			return rooms[index].Id
		})
		professors = append(professors, model.Professor{
			Id:                       uint64(id + 1),
			Name:                     fmt.Sprintf("Professor %v", id+1),
			RequiresAccessibleRoom:   random.IntN(20) == 0,
			PreferredRooms:           preferred,
			PreferredCharacteristics: randomCharacteristics(random, 2).Slice(),
		})
	}

	demands := make([]model.Demand, 0, size.Demands)
	for id := range size.Demands {
		roomType := model.RoomTypeAny
		if random.IntN(3) == 0 {
			roomType = model.RoomTypes[random.IntN(len(model.RoomTypes))]
		}
		demands = append(demands, model.Demand{
			Id:              uint64(id + 1),
			Name:            fmt.Sprintf("Course %v", id+1),
			Enrollment:      uint64(5 + random.IntN(140)),
			RoomType:        roomType,
			Characteristics: randomCharacteristics(random, 2),
			Professor:       uint64(1 + random.IntN(size.Professors)),
			Pattern:         randomPattern(random, 1+random.IntN(3)),
			Priority:        lo.Ternary(random.IntN(10) == 0, 1, 0),
		})
	}

	return model.Snapshot{
		Semester:   fmt.Sprintf("%v-%v", size.Name, seed),
		Rooms:      rooms,
		Professors: professors,
		Demands:    demands,
	}
}

// At most limit characteristics, each with even odds
func randomCharacteristics(random *rand.Rand, limit int) model.CharacteristicSet {
	var set model.CharacteristicSet
	for range limit {
		if random.IntN(2) == 0 {
			set = set.With(model.Characteristic(random.IntN(8)))
		}
	}
	return set
}

// count distinct slots in catalog order
func randomPattern(random *rand.Rand, count int) []model.TimeSlot {
	ordinals := random.Perm(catalogDays * catalogBlocks)[:count]
	slices.Sort(ordinals)
	return lo.Map(ordinals, func(ordinal int, _ int) model.TimeSlot {
		return model.TimeSlot{Day: uint64(ordinal / catalogBlocks), Block: uint64(ordinal % catalogBlocks)}
	})
}
