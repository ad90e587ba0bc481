package allocation

import (
	"fmt"
	"math"
	"slices"

	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/shopspring/decimal"
)

// Weights of the linear soft-preference model
type Weights struct {
	Room           decimal.Decimal // Room is among the professor's preferred rooms
	Characteristic decimal.Decimal // Room carries characteristics the professor prefers
	Tightness      decimal.Decimal // Penalty for seats left empty
}

func DefaultWeights() Weights {
	return Weights{
		Room:           decimal.NewFromInt(3),
		Characteristic: decimal.NewFromInt(1),
		Tightness:      decimal.NewFromInt(2),
	}
}

// NewWeights rejects negative and non-finite weights
func NewWeights(room, characteristic, tightness float64) (Weights, error) {
	for _, weight := range []float64{room, characteristic, tightness} {
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return Weights{}, fmt.Errorf("weights must be finite and non-negative: room=%v characteristic=%v tightness=%v", room, characteristic, tightness)
		}
	}
	return Weights{
		Room:           decimal.NewFromFloat(room),
		Characteristic: decimal.NewFromFloat(characteristic),
		Tightness:      decimal.NewFromFloat(tightness),
	}, nil
}

type scorer struct {
	weights Weights
}

// Score of placing demand (taught by professor) in room. Higher is better.
func (scorer scorer) Score(demand model.Demand, professor model.Professor, room model.Room) decimal.Decimal {
	roomPreference := rankedPreference(professor.PreferredRooms, room.Id)
	characteristicPreference := characteristicPreference(professor.PreferredCharacteristics, room.Characteristics)
	waste := decimal.NewFromInt(int64(room.Capacity - demand.Enrollment)).Div(decimal.NewFromInt(int64(room.Capacity)))

	return scorer.weights.Room.Mul(roomPreference).
		Add(scorer.weights.Characteristic.Mul(characteristicPreference)).
		Sub(scorer.weights.Tightness.Mul(waste))
}

// (n-rank)/n for the item's 0-based rank among n ordered preferences, 0 if absent
func rankedPreference(preferences []uint64, item uint64) decimal.Decimal {
	rank := slices.Index(preferences, item)
	if rank < 0 {
		return decimal.Zero
	}
	n := int64(len(preferences))
	return decimal.NewFromInt(n - int64(rank)).Div(decimal.NewFromInt(n))
}

// Rank-weighted share of the preferred characteristics carried by the room, within [0, 1]
func characteristicPreference(preferences []model.Characteristic, carried model.CharacteristicSet) decimal.Decimal {
	if len(preferences) == 0 {
		return decimal.Zero
	}

	m := int64(len(preferences))
	matched, total := decimal.Zero, decimal.Zero
	for rank, characteristic := range preferences {
		weight := decimal.NewFromInt(m - int64(rank))
		total = total.Add(weight)
		if carried.Has(characteristic) {
			matched = matched.Add(weight)
		}
	}
	return matched.Div(total)
}
