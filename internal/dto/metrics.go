package dto

import "github.com/revuehq/revue-api/internal/insights"

// MetricsResponse is the aggregate metrics payload for a time range.
type MetricsResponse struct {
	Range string                 `json:"range"`
	KPIs  insights.KPIs          `json:"kpis"`
	Daily []insights.DailyBucket `json:"daily"`
}
