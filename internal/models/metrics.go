package models

import "time"

// SystemMetrics is a point-in-time view of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	StoreOperations          uint64    `json:"storeOperations"`
	StoreFailures            uint64    `json:"storeFailures"`
	AverageStoreDurationMs   float64   `json:"averageStoreDurationMs"`
	EnrollmentFailures       uint64    `json:"enrollmentFailures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
