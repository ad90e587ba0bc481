package model

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type Room struct {
	Id              uint64            `json:"id"`
	Name            string            `json:"name"`
	Capacity        uint64            `json:"capacity" validate:"gt=0"`
	Type            RoomType          `json:"type" validate:"ne=0"`
	Characteristics CharacteristicSet `json:"characteristics"`
	Building        string            `json:"building,omitempty"`
}

type Professor struct {
	Id                       uint64           `json:"id"`
	Name                     string           `json:"name"`
	RequiresAccessibleRoom   bool             `json:"requiresAccessibleRoom"`
	PreferredRooms           []uint64         `json:"preferredRooms,omitempty"`           // Most preferred first
	PreferredCharacteristics []Characteristic `json:"preferredCharacteristics,omitempty"` // Most preferred first
}

// Demand is one course offering awaiting a room. Every slot of its Pattern must be served by the same room.
type Demand struct {
	Id              uint64            `json:"id"`
	Name            string            `json:"name"`
	Enrollment      uint64            `json:"enrollment" validate:"gt=0"`
	RoomType        RoomType          `json:"roomType"`
	Characteristics CharacteristicSet `json:"characteristics"`
	Professor       uint64            `json:"professor"`
	Pattern         []TimeSlot        `json:"pattern" validate:"min=1"`
	Priority        int               `json:"priority,omitempty"`
}

// AllocationRecord binds a demand to a room for a set of slots. Pinned records are preserved as-is by the engine.
type AllocationRecord struct {
	Demand    uint64     `json:"demand"`
	Room      uint64     `json:"room"`
	Professor uint64     `json:"professor"`
	Slots     []TimeSlot `json:"slots" validate:"min=1"`
	Pinned    bool       `json:"pinned"`
}

// Snapshot is everything an allocation run consumes besides the catalog
type Snapshot struct {
	Semester   string             `json:"semester,omitempty"`
	Rooms      []Room             `json:"rooms"`
	Professors []Professor        `json:"professors"`
	Demands    []Demand           `json:"demands"`
	Pinned     []AllocationRecord `json:"pinned,omitempty"`
}

func SnapshotFromJson(file string) (Snapshot, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return Snapshot{}, fmt.Errorf("cannot read snapshot file: %w", err)
	}
	return SnapshotFromBytes(bytes)
}

func SnapshotFromBytes(bytes []byte) (Snapshot, error) {
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return Snapshot{}, err
	}

	var snapshot Snapshot
	if err := decode(inputJson, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("cannot decode snapshot: %w", err)
	}
	return snapshot, nil
}

// RecordsFromJson reads a bare list of allocation records, as produced by an external editor
func RecordsFromJson(file string) ([]AllocationRecord, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read records file: %w", err)
	}

	var inputJson []any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return nil, err
	}

	var records []AllocationRecord
	if err := decode(inputJson, &records); err != nil {
		return nil, fmt.Errorf("cannot decode records: %w", err)
	}
	return records, nil
}

func decode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			characteristicSetHook,
			mapstructure.TextUnmarshallerHookFunc(),
		),
		ErrorUnused: true,
		Result:      output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

var characteristicSetType = reflect.TypeOf(CharacteristicSet(0))

// Characteristic sets travel as lists of names
func characteristicSetHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != characteristicSetType || from.Kind() != reflect.Slice {
		return data, nil
	}

	var set CharacteristicSet
	values := reflect.ValueOf(data)
	for i := range values.Len() {
		value := values.Index(i).Interface()
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("characteristic must be a string: %v", value)
		}
		characteristic, err := ParseCharacteristic(name)
		if err != nil {
			return nil, err
		}
		set = set.With(characteristic)
	}
	return set, nil
}

// Lookup tables keyed by id

func RoomsById(rooms []Room) map[uint64]Room {
	return lo.KeyBy(rooms, func(room Room) uint64 { return room.Id })
}

func ProfessorsById(professors []Professor) map[uint64]Professor {
	return lo.KeyBy(professors, func(professor Professor) uint64 { return professor.Id })
}

func DemandsById(demands []Demand) map[uint64]Demand {
	return lo.KeyBy(demands, func(demand Demand) uint64 { return demand.Id })
}
