package schema

// EcosystemCollation is the cumulative stack frequency state of one ecosystem.
type EcosystemCollation struct {
	UserInputStack FrequencyMap `json:"user_input_stack,omitempty"`
	BigQueryData   FrequencyMap `json:"bigquery_data,omitempty"`
}

// CollatedState is the persisted cumulative state across reporting windows.
type CollatedState map[Ecosystem]EcosystemCollation

// PackageLists holds the distinct package-name lists derived from each collated source.
type PackageLists struct {
	UserInputStack [][]string `json:"user_input_stack"`
	BigQueryData   [][]string `json:"bigquery_data"`
}

// TrainingData is the manifest written for model retraining.
type TrainingData struct {
	Ecosystem   Ecosystem    `json:"ecosystem"`
	PackageDict PackageLists `json:"package_dict"`
}
