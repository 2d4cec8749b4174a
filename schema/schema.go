// Package schema has the report models, enums and object key helpers shared by all parts of stackreport.
package schema

// NewReportDocument returns an empty report for a window with all collections initialized.
func NewReportDocument(from, to, generatedOn string) *ReportDocument {
	return &ReportDocument{
		Report: ReportHeader{
			From:          from,
			To:            to,
			GeneratedOn:   generatedOn,
			ReportVersion: DefaultScope,
		},
		StacksSummary: StacksSummary{
			UniqueUnknownLicensesWithFrequency: FrequencyMap{},
			UniqueCVEs:                         FrequencyMap{},
			Ecosystems:                         map[Ecosystem]EcosystemSummary{},
		},
		StacksDetails: []StackDetail{},
	}
}

// NewIngestionReport returns an empty ingestion report for a window.
func NewIngestionReport(from, to, generatedOn string) *IngestionReport {
	return &IngestionReport{
		Report: ReportHeader{From: from, To: to, GeneratedOn: generatedOn},
		IngestionSummary: IngestionSummary{
			IncorrectLatestVersion: map[Ecosystem][]IncorrectLatestVersion{},
			UnknownDeps:            map[Ecosystem][]EPV{},
			Stats:                  map[Ecosystem]*IngestionStats{},
			MissingLatestNode:      map[Ecosystem][]PackageVersion{},
		},
		IngestionDetails: map[Ecosystem]map[string]*PackageDetail{},
	}
}
