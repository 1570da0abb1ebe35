package ports

import (
	"goposthoc/domain/posthoc"
)

// DatasetReader turns a tabular source into post-hoc input shapes
type DatasetReader interface {
	// ReadGroups groups valueCol by groupCol (long format)
	ReadGroups(valueCol, groupCol string) (posthoc.Groups, error)

	// ReadBlocks pivots a long table into blocks × treatments
	ReadBlocks(valueCol, groupCol, blockCol string) (posthoc.BlockDesign, error)

	// ReadWideBlocks reads a table whose columns are treatments and rows blocks
	ReadWideBlocks() (posthoc.BlockDesign, error)

	// ReadColumn reads a single numeric column
	ReadColumn(valueCol string) ([]float64, error)
}
