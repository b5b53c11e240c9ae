package linear

import (
	"math/rand"

	"github.com/0xTCG/secure-mice/core/tensor"
	"github.com/0xTCG/secure-mice/pkg/log"
)

// options holds construction-time configuration shared by LinReg and LogReg.
type options struct {
	seed   int64
	logger log.Logger
	coef   tensor.Tensor
}

// Option configures a regression model at construction time.
type Option func(*options)

// WithSeed sets the random seed used for weight randomization and
// prediction noise. A negative seed selects a non-deterministic source.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithLogger replaces the model's logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithInitialWeights supplies caller-provided initial coefficients of shape
// (features+1, 1). Without this option training starts from zeros.
func WithInitialWeights(coef tensor.Tensor) Option {
	return func(o *options) {
		o.coef = coef
	}
}

func newOptions(opts ...Option) *options {
	o := &options{seed: -1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) newRand() *rand.Rand {
	if o.seed >= 0 {
		return rand.New(rand.NewSource(o.seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}
