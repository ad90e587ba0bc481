package model

import (
	"fmt"
)

// TimeSlot is a (weekday, time-block) pair. Day and Block index into the Catalog.
type TimeSlot struct {
	Day   uint64 `json:"day" mapstructure:"day"`
	Block uint64 `json:"block" mapstructure:"block"`
}

func (slot TimeSlot) String() string {
	return fmt.Sprintf("d%v/b%v", slot.Day, slot.Block)
}

// Compare orders slots day-major, block-minor
func (slot TimeSlot) Compare(other TimeSlot) int {
	if slot.Day != other.Day {
		if slot.Day < other.Day {
			return -1
		}
		return 1
	}
	if slot.Block < other.Block {
		return -1
	} else if slot.Block > other.Block {
		return 1
	}
	return 0
}

// Catalog is the fixed, totally ordered set of weekly time slots
type Catalog struct {
	Days    []string
	Blocks  []string
	indexer indexer
}

func NewCatalog(days, blocks []string) (Catalog, error) {
	if len(days) == 0 || len(blocks) == 0 {
		return Catalog{}, fmt.Errorf("time-slot catalog must have at least one day and one block: days=%v blocks=%v", len(days), len(blocks))
	}
	return Catalog{
		Days:    days,
		Blocks:  blocks,
		indexer: newIndexer(uint64(len(days)), uint64(len(blocks))),
	}, nil
}

func (catalog Catalog) Len() uint64 {
	return uint64(len(catalog.Days) * len(catalog.Blocks))
}

func (catalog Catalog) Empty() bool {
	return catalog.Len() == 0
}

func (catalog Catalog) Contains(slot TimeSlot) bool {
	return slot.Day < uint64(len(catalog.Days)) && slot.Block < uint64(len(catalog.Blocks))
}

// Index returns the ordinal of the slot inside the catalog's total order
func (catalog Catalog) Index(slot TimeSlot) (uint64, bool) {
	if !catalog.Contains(slot) {
		return 0, false
	}
	return catalog.getIndexer().Index(slot.Day, slot.Block), true
}

// Slot is the inverse of Index
func (catalog Catalog) Slot(index uint64) TimeSlot {
	day, block := catalog.getIndexer().Attributes(index)
	return TimeSlot{Day: day, Block: block}
}

// Slots returns every slot of the catalog in order
func (catalog Catalog) Slots() []TimeSlot {
	slots := make([]TimeSlot, 0, catalog.Len())
	for index := range catalog.Len() {
		slots = append(slots, catalog.Slot(index))
	}
	return slots
}

// Label renders a slot as "Monday-Block2"
func (catalog Catalog) Label(slot TimeSlot) string {
	if !catalog.Contains(slot) {
		return slot.String()
	}
	return fmt.Sprintf("%v-%v", catalog.Days[slot.Day], catalog.Blocks[slot.Block])
}

// Catalogs built as struct literals (e.g. decoded from configuration) get their indexer lazily
func (catalog Catalog) getIndexer() indexer {
	if catalog.indexer == nil {
		return newIndexer(uint64(len(catalog.Days)), uint64(len(catalog.Blocks)))
	}
	return catalog.indexer
}
