package model

type indexerImplementation struct {
	days   uint64
	blocks uint64
}

// Day-major so that ordinals follow the catalog's total order
func (indexer *indexerImplementation) Index(day, block uint64) uint64 {
	return block + indexer.blocks*day
}

func (indexer *indexerImplementation) Attributes(index uint64) (day, block uint64) {
	block = index % indexer.blocks
	index = index / indexer.blocks

	day = index % indexer.days

	return day, block
}
