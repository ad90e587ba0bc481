package allocation

import (
	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/samber/lo"
)

type predicateEvaluator interface {
	// Checks whether the room's capacity is greater than or equal to the demand's enrollment (i.e. the demand fits in the room)
	Fits(demand model.Demand, room model.Room) bool

	// Checks whether the room is of the type requested by the demand, if the demand requests any
	TypeMatches(demand model.Demand, room model.Room) bool

	// Checks whether the room carries every characteristic required by the demand
	Equipped(demand model.Demand, room model.Room) bool

	// Checks whether the room satisfies the professor's accessibility requirement
	Accessible(professor model.Professor, room model.Room) bool
}

type predicateEvaluatorStandard struct{}

func newPredicateEvaluator() predicateEvaluator {
	return predicateEvaluatorStandard{}
}

func (predicateEvaluatorStandard) Fits(demand model.Demand, room model.Room) bool {
	return room.Capacity >= demand.Enrollment
}

func (predicateEvaluatorStandard) TypeMatches(demand model.Demand, room model.Room) bool {
	return demand.RoomType == model.RoomTypeAny || demand.RoomType == room.Type
}

func (predicateEvaluatorStandard) Equipped(demand model.Demand, room model.Room) bool {
	return room.Characteristics.ContainsAll(demand.Characteristics)
}

func (predicateEvaluatorStandard) Accessible(professor model.Professor, room model.Room) bool {
	return !professor.RequiresAccessibleRoom || room.Characteristics.Has(model.AccessibleEntrance)
}

// Eligible applies the hard constraints in short-circuit order
func eligible(evaluator predicateEvaluator, demand model.Demand, professor model.Professor, room model.Room) bool {
	return evaluator.Fits(demand, room) &&
		evaluator.TypeMatches(demand, room) &&
		evaluator.Equipped(demand, room) &&
		evaluator.Accessible(professor, room)
}

// EligibleRooms returns the rooms satisfying every hard constraint of the demand, regardless of occupancy,
// in the order they were given. An empty result means the demand cannot be placed anywhere.
func EligibleRooms(demand model.Demand, professor model.Professor, rooms []model.Room) []model.Room {
	evaluator := newPredicateEvaluator()
	return lo.Filter(rooms, func(room model.Room, _ int) bool {
		return eligible(evaluator, demand, professor, room)
	})
}
