package model

// indexer gives a unique ordinal to a (day, block) combination and vice versa
type indexer interface {
	// Returns the ordinal of the (day, block) combination
	Index(day, block uint64) uint64
	// Returns the (day, block) combination of an ordinal
	Attributes(index uint64) (day, block uint64)
}

func newIndexer(days, blocks uint64) indexer {
	return &indexerImplementation{
		days:   days,
		blocks: blocks,
	}
}
