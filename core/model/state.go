// Package model provides the regression-model contract shared by the
// imputation engine and state management for its implementations.
package model

import (
	"sync"

	"github.com/0xTCG/secure-mice/pkg/errors"
)

// StateManager tracks the fitted state of a model in a thread-safe manner.
// Models compose it instead of embedding a base estimator.
type StateManager struct {
	fitted bool
	mu     sync.RWMutex

	nFeatures int
	nSamples  int
}

// NewStateManager creates an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset clears the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// SetDimensions records the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError if the model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}
