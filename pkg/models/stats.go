package models

// StatsGroup holds the aggregates shared by the overall and grouped statistics.
type StatsGroup struct {
	Key                string  `json:"key,omitempty"`
	TotalErrors        int     `json:"total_errors"`
	UniqueEntityTypes  int     `json:"unique_entity_types"`
	UniqueEntities     int     `json:"unique_entities"`
	TotalOccurrences   int64   `json:"total_occurrences"`
	AverageOccurrences float64 `json:"avg_occurrences"`
}

// ErrorStats is the result of a statistics query. Groups are ordered by
// TotalErrors descending.
type ErrorStats struct {
	General      StatsGroup   `json:"general"`
	ByEntityType []StatsGroup `json:"by_entity_type"`
	ByCategory   []StatsGroup `json:"by_category"`
}
