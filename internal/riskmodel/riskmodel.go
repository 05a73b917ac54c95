// Package riskmodel implements the online logistic classifier that fuses
// with the analytical collision-probability estimate: a small, continuously
// updated linear model over four close-approach features.
package riskmodel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
)

// saveInterval is how many observations accumulate between persistence
// writes; chosen to bound disk churn under a steady stream of updates.
const saveInterval = 25

var featureNames = [4]string{
	"minimum_distance_km",
	"relative_velocity_km_s",
	"tle_age_hours",
	"baseline_risk_score",
}

// persisted is the on-disk JSON shape, matching the parameter-plus-hyperparameter
// schema the rest of the pipeline expects to be able to read back.
type persisted struct {
	Params struct {
		Bias             float64    `json:"bias"`
		Coefficients     [4]float64 `json:"coefficients"`
		ObservationCount uint64     `json:"observation_count"`
		LastUpdated      *time.Time `json:"last_updated,omitempty"`
	} `json:"params"`
	LearningRate float64 `json:"learning_rate"`
	L2Penalty    float64 `json:"l2_penalty"`
}

// Model is a single global logistic-regression classifier guarded by a
// mutex — spec-level reasoning assumes one shared model, not one per tenant.
type Model struct {
	mu sync.Mutex

	bias             float64
	coefficients     [4]float64
	observationCount uint64
	lastUpdated      time.Time

	learningRate float64
	l2Penalty    float64

	persistPath string
	log         *slog.Logger
}

// LoadOrDefault reads a persisted model from path if present and valid;
// otherwise it returns a model seeded with the cold-start parameters tuned
// offline for this feature set.
func LoadOrDefault(path string, learningRate, l2Penalty float64, log *slog.Logger) *Model {
	if log == nil {
		log = slog.Default()
	}
	if m := loadFromFile(path, log); m != nil {
		return m
	}
	return &Model{
		bias:         -3.125,
		coefficients: [4]float64{-2.75, 0.42, 0.18, 2.10},
		learningRate: learningRate,
		l2Penalty:    l2Penalty,
		persistPath:  path,
		log:          log,
	}
}

func loadFromFile(path string, log *slog.Logger) *Model {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn("risk model state file is unreadable, starting from cold-start defaults", "path", path, "err", err)
		return nil
	}
	m := &Model{
		bias:             p.Params.Bias,
		coefficients:     p.Params.Coefficients,
		observationCount: p.Params.ObservationCount,
		learningRate:     p.LearningRate,
		l2Penalty:        p.L2Penalty,
		persistPath:      path,
		log:              log,
	}
	if p.Params.LastUpdated != nil {
		m.lastUpdated = *p.Params.LastUpdated
	}
	return m
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// Predict returns the model's current probability estimate for features,
// without mutating state.
func (m *Model) Predict(features [4]float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictLocked(features)
}

func (m *Model) predictLocked(features [4]float64) float64 {
	z := m.bias
	for i, w := range m.coefficients {
		z += w * features[i]
	}
	return sigmoid(z)
}

// PredictAndUpdate returns the pre-update prediction, then applies one step
// of clamped-error L2-penalized gradient descent toward label. This is the
// single entry point the conjunction and reservation packages consult.
func (m *Model) PredictAndUpdate(features [4]float64, label float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	prediction := m.predictLocked(features)
	errVal := clamp(prediction-label, -50, 50)

	m.bias -= m.learningRate * (errVal + m.l2Penalty*m.bias)
	for i := range m.coefficients {
		grad := errVal*features[i] + m.l2Penalty*m.coefficients[i]
		m.coefficients[i] -= m.learningRate * grad
	}

	m.observationCount++
	m.lastUpdated = time.Now().UTC()

	if m.observationCount%saveInterval == 0 {
		if err := m.persistLocked(); err != nil {
			m.log.Warn("failed to persist risk model state", "path", m.persistPath, "err", err)
		}
	}

	return prediction
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Persist writes the current parameters to disk, creating the parent
// directory if needed. A zero persistPath is a no-op.
func (m *Model) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked()
}

func (m *Model) persistLocked() error {
	if m.persistPath == "" {
		return nil
	}
	if dir := filepath.Dir(m.persistPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			observability.ObserveRiskModelPersist(err)
			return fmt.Errorf("riskmodel: create persist dir: %w", err)
		}
	}

	var p persisted
	p.Params.Bias = m.bias
	p.Params.Coefficients = m.coefficients
	p.Params.ObservationCount = m.observationCount
	if !m.lastUpdated.IsZero() {
		lu := m.lastUpdated
		p.Params.LastUpdated = &lu
	}
	p.LearningRate = m.learningRate
	p.L2Penalty = m.l2Penalty

	payload, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		observability.ObserveRiskModelPersist(err)
		return fmt.Errorf("riskmodel: marshal state: %w", err)
	}
	if err := os.WriteFile(m.persistPath, payload, 0o600); err != nil {
		observability.ObserveRiskModelPersist(err)
		return fmt.Errorf("riskmodel: write state: %w", err)
	}
	observability.ObserveRiskModelPersist(nil)
	return nil
}

// Explain returns a read-only snapshot of the model's current parameters,
// for the predict_risk diagnostic surface.
func (m *Model) Explain() model.RiskModelExplanation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.RiskModelExplanation{
		Bias:             m.bias,
		Coefficients:     m.coefficients,
		FeatureNames:     featureNames,
		ObservationCount: m.observationCount,
		PersistPath:      m.persistPath,
	}
}

// SetLearningRate clamps and applies a new learning rate, for runtime tuning.
func (m *Model) SetLearningRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learningRate = clamp(rate, 1e-5, 1e-1)
}

// SetL2Penalty clamps and applies a new L2 penalty.
func (m *Model) SetL2Penalty(penalty float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.l2Penalty = clamp(penalty, 0, 1e-1)
}
