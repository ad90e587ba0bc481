package model

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"

	"github.com/samber/lo"
)

// RoomType is the closed set of room categories. RoomTypeAny is only meaningful on a demand,
// where it stands for "no type requirement".
type RoomType uint8

const (
	RoomTypeAny RoomType = iota
	Classroom
	Laboratory
	Auditorium
	Seminar
	ComputerLab
)

var roomTypeNames = map[RoomType]string{
	RoomTypeAny: "any",
	Classroom:   "classroom",
	Laboratory:  "laboratory",
	Auditorium:  "auditorium",
	Seminar:     "seminar",
	ComputerLab: "computer-lab",
}

// RoomTypes lists every concrete room type (RoomTypeAny excluded)
var RoomTypes = []RoomType{Classroom, Laboratory, Auditorium, Seminar, ComputerLab}

func (roomType RoomType) String() string {
	if name, ok := roomTypeNames[roomType]; ok {
		return name
	}
	return fmt.Sprintf("RoomType(%d)", uint8(roomType))
}

func ParseRoomType(value string) (RoomType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return RoomTypeAny, nil
	}
	roomType, ok := lo.FindKey(roomTypeNames, value)
	if !ok {
		return RoomTypeAny, fmt.Errorf("unknown room type \"%v\"", value)
	}
	return roomType, nil
}

func (roomType RoomType) MarshalText() ([]byte, error) {
	return []byte(roomType.String()), nil
}

func (roomType *RoomType) UnmarshalText(text []byte) error {
	parsed, err := ParseRoomType(string(text))
	if err != nil {
		return err
	}
	*roomType = parsed
	return nil
}

// Characteristic is a closed set of room features a demand may require or a professor may prefer
type Characteristic uint8

const (
	Projector Characteristic = iota
	AccessibleEntrance
	Whiteboard
	Computers
	AudioSystem
	VideoConference
	AirConditioning
	Smartboard

	characteristicCount
)

var characteristicNames = map[Characteristic]string{
	Projector:          "projector",
	AccessibleEntrance: "accessible-entrance",
	Whiteboard:         "whiteboard",
	Computers:          "computers",
	AudioSystem:        "audio-system",
	VideoConference:    "video-conference",
	AirConditioning:    "air-conditioning",
	Smartboard:         "smartboard",
}

func (characteristic Characteristic) String() string {
	if name, ok := characteristicNames[characteristic]; ok {
		return name
	}
	return fmt.Sprintf("Characteristic(%d)", uint8(characteristic))
}

func ParseCharacteristic(value string) (Characteristic, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	characteristic, ok := lo.FindKey(characteristicNames, value)
	if !ok {
		return 0, fmt.Errorf("unknown characteristic \"%v\"", value)
	}
	return characteristic, nil
}

func (characteristic Characteristic) MarshalText() ([]byte, error) {
	return []byte(characteristic.String()), nil
}

func (characteristic *Characteristic) UnmarshalText(text []byte) error {
	parsed, err := ParseCharacteristic(string(text))
	if err != nil {
		return err
	}
	*characteristic = parsed
	return nil
}

// CharacteristicSet is a bitset over Characteristic. The zero value is the empty set.
type CharacteristicSet uint32

func NewCharacteristicSet(characteristics ...Characteristic) CharacteristicSet {
	var set CharacteristicSet
	for _, characteristic := range characteristics {
		set = set.With(characteristic)
	}
	return set
}

func (set CharacteristicSet) With(characteristic Characteristic) CharacteristicSet {
	return set | 1<<characteristic
}

func (set CharacteristicSet) Has(characteristic Characteristic) bool {
	return set&(1<<characteristic) != 0
}

// ContainsAll checks whether set is a superset of other
func (set CharacteristicSet) ContainsAll(other CharacteristicSet) bool {
	return set&other == other
}

func (set CharacteristicSet) Intersection(other CharacteristicSet) CharacteristicSet {
	return set & other
}

func (set CharacteristicSet) Len() int {
	return bits.OnesCount32(uint32(set))
}

// Slice returns the members of the set in ascending order
func (set CharacteristicSet) Slice() []Characteristic {
	members := make([]Characteristic, 0, set.Len())
	for characteristic := range characteristicCount {
		if set.Has(characteristic) {
			members = append(members, characteristic)
		}
	}
	return members
}

func (set CharacteristicSet) String() string {
	return "{" + strings.Join(lo.Map(set.Slice(), func(characteristic Characteristic, _ int) string {
		return characteristic.String()
	}), ", ") + "}"
}

func (set CharacteristicSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(set.Slice())
}

func (set *CharacteristicSet) UnmarshalJSON(data []byte) error {
	var characteristics []Characteristic
	if err := json.Unmarshal(data, &characteristics); err != nil {
		return err
	}
	*set = NewCharacteristicSet(characteristics...)
	return nil
}
