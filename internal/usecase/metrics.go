package usecase

import (
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

// NoopMetrics discards every observation.
type NoopMetrics struct{}

var _ domrepo.Metrics = NoopMetrics{}

func (NoopMetrics) RecordAssessment(string, models.Signal) {}
func (NoopMetrics) RecordCacheResult(bool)                 {}
func (NoopMetrics) RecordError(string)                     {}
func (NoopMetrics) RecordRisk(string, float64)             {}
func (NoopMetrics) RecordLatency(string, float64)          {}
