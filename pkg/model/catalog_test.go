package model

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexAndAttributesDeterministic(t *testing.T) {
	// Arrange
	scenarios := [][]uint64{
		{1, 1},
		{5, 6},
		{6, 8},
		{7, 12},
		{3, 1},
	}

	for _, scenario := range scenarios {
		Days, Blocks := scenario[0], scenario[1]
		indexer := newIndexer(Days, Blocks)

		// Act
		indices := make([]uint64, 0, Days*Blocks)
		for day := range Days {
			for block := range Blocks {
				indices = append(indices, indexer.Index(day, block))
			}
		}

		// Assert
		for _, index := range indices {
			day, block := indexer.Attributes(index)
			assert.Equal(t, index, indexer.Index(day, block))
		}
	}
}

func TestIndicesAreContiguousAndOrdered(t *testing.T) {
	for range 10 {
		// Arrange
		Days := uint64(rand.Intn(7) + 1)
		Blocks := uint64(rand.Intn(12) + 1)
		indexer := newIndexer(Days, Blocks)

		// Act
		indices := make([]uint64, 0, Days*Blocks)
		for day := range Days {
			for block := range Blocks {
				indices = append(indices, indexer.Index(day, block))
			}
		}

		// Assert
		assert.True(t, slices.IsSorted(indices), "indices must follow day-major order")
		for i, index := range indices {
			assert.Equal(t, uint64(i), index)
		}
	}
}

func TestCatalog(t *testing.T) {
	catalog, err := NewCatalog([]string{"Monday", "Tuesday"}, []string{"Block1", "Block2", "Block3"})
	require.NoError(t, err)

	t.Run("Contains and Len", func(t *testing.T) {
		assert.Equal(t, uint64(6), catalog.Len())
		assert.True(t, catalog.Contains(TimeSlot{Day: 1, Block: 2}))
		assert.False(t, catalog.Contains(TimeSlot{Day: 2, Block: 0}))
		assert.False(t, catalog.Contains(TimeSlot{Day: 0, Block: 3}))
	})

	t.Run("Index round trip", func(t *testing.T) {
		for _, slot := range catalog.Slots() {
			index, ok := catalog.Index(slot)
			require.True(t, ok)
			assert.Equal(t, slot, catalog.Slot(index))
		}
		_, ok := catalog.Index(TimeSlot{Day: 9, Block: 9})
		assert.False(t, ok)
	})

	t.Run("Slots follow the total order", func(t *testing.T) {
		slots := catalog.Slots()
		assert.True(t, slices.IsSortedFunc(slots, TimeSlot.Compare))
		assert.Equal(t, TimeSlot{Day: 0, Block: 0}, slots[0])
		assert.Equal(t, TimeSlot{Day: 1, Block: 2}, slots[len(slots)-1])
	})

	t.Run("Label", func(t *testing.T) {
		assert.Equal(t, "Monday-Block2", catalog.Label(TimeSlot{Day: 0, Block: 1}))
		assert.Equal(t, "d7/b0", catalog.Label(TimeSlot{Day: 7, Block: 0}))
	})

	t.Run("Struct literal catalogs index lazily", func(t *testing.T) {
		literal := Catalog{Days: catalog.Days, Blocks: catalog.Blocks}
		index, ok := literal.Index(TimeSlot{Day: 1, Block: 0})
		assert.True(t, ok)
		assert.Equal(t, uint64(3), index)
	})
}

func TestEmptyCatalog(t *testing.T) {
	_, err := NewCatalog(nil, []string{"Block1"})
	assert.Error(t, err)

	_, err = NewCatalog([]string{"Monday"}, nil)
	assert.Error(t, err)

	assert.True(t, Catalog{}.Empty())
}
