package assets

import "embed"

// DataFS embeds the bundled sample dataset served by the memory backend.
//
//go:embed data/housing_data.csv
var DataFS embed.FS

// SampleDataset is the path of the sample CSV inside DataFS.
const SampleDataset = "data/housing_data.csv"
