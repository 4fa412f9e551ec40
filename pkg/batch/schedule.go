package batch

import (
	"fmt"
	"math"
)

// Warmup and decay mode names for learning-rate schedules.
const (
	WarmupFlat   = "flat"
	WarmupLinear = "linear"

	DecayLinear      = "linear"
	DecayExponential = "exponential"
)

// Schedule maps a zero-based optimizer step to a learning-rate
// multiplier.
type Schedule func(step int) float64

// ScheduleConfig controls NewSchedule.
type ScheduleConfig struct {
	// TotalSteps is the total number of optimizer steps.
	TotalSteps int

	// WarmupSteps is the number of initial steps under the warmup
	// curve. The decay curve applies from then on.
	WarmupSteps int

	// Warmup is WarmupFlat or WarmupLinear. Empty means WarmupLinear.
	Warmup string

	// Decay is DecayLinear or DecayExponential. Empty means
	// DecayLinear.
	Decay string

	// Gamma is the exponential decay base. Zero means 0.9.
	Gamma float64

	// GammaSteps is the period over which exponential decay applies
	// one factor of Gamma. Zero means 1000.
	GammaSteps int
}

// NewSchedule builds a learning-rate multiplier schedule with a warmup
// phase followed by a decay phase. With Gamma 0.5 and GammaSteps 1000,
// for instance, the multiplier halves every 1000 steps after warmup.
func NewSchedule(cfg ScheduleConfig) (Schedule, error) {
	if cfg.TotalSteps < 1 {
		return nil, fmt.Errorf("total steps must be positive, got %d", cfg.TotalSteps)
	}
	if cfg.WarmupSteps < 0 || cfg.WarmupSteps > cfg.TotalSteps {
		return nil, fmt.Errorf("warmup steps %d outside total steps %d", cfg.WarmupSteps, cfg.TotalSteps)
	}
	gamma := cfg.Gamma
	if gamma == 0 {
		gamma = 0.9
	}
	if gamma < 0 {
		return nil, fmt.Errorf("gamma must be positive, got %v", cfg.Gamma)
	}
	gammaSteps := cfg.GammaSteps
	if gammaSteps == 0 {
		gammaSteps = 1000
	}
	if gammaSteps < 0 {
		return nil, fmt.Errorf("gamma steps must be positive, got %d", cfg.GammaSteps)
	}

	total := float64(cfg.TotalSteps)
	warmupSteps := float64(cfg.WarmupSteps)

	var warmup func(step float64) float64
	switch cfg.Warmup {
	case WarmupFlat:
		warmup = func(float64) float64 { return 1.0 }
	case "", WarmupLinear:
		warmup = func(step float64) float64 { return (step + 1) / warmupSteps }
	default:
		return nil, fmt.Errorf("warmup mode %q is not valid", cfg.Warmup)
	}

	var decay func(step float64) float64
	switch cfg.Decay {
	case "", DecayLinear:
		if cfg.TotalSteps == cfg.WarmupSteps {
			return nil, fmt.Errorf("linear decay requires total steps above warmup steps")
		}
		decay = func(step float64) float64 {
			return (total - (step + 1)) / (total - warmupSteps)
		}
	case DecayExponential:
		period := float64(gammaSteps)
		decay = func(step float64) float64 {
			return math.Pow(gamma, (step+1-warmupSteps)/period)
		}
	default:
		return nil, fmt.Errorf("decay mode %q is not valid", cfg.Decay)
	}

	return func(step int) float64 {
		s := float64(step)
		if s < warmupSteps {
			return warmup(s)
		}
		return decay(s)
	}, nil
}

// EpochScheduleConfig expresses a schedule in whole epochs rather than
// steps.
type EpochScheduleConfig struct {
	// Epochs is the total number of passes over the training data.
	Epochs int

	// BatchesPerEpoch is the number of optimizer steps in one epoch.
	BatchesPerEpoch int

	// WarmupEpochs is the number of initial epochs under the warmup
	// curve.
	WarmupEpochs int

	// Warmup is WarmupFlat or WarmupLinear. Empty means WarmupLinear.
	Warmup string

	// Decay is DecayLinear or DecayExponential. Empty means
	// DecayLinear.
	Decay string

	// Gamma is the exponential decay base. Zero means 0.9.
	Gamma float64

	// GammaEpochs is the period in epochs over which exponential decay
	// applies one factor of Gamma. Zero means 1.
	GammaEpochs int
}

// NewEpochSchedule builds a schedule whose phases are measured in whole
// epochs. With Gamma 0.5 and GammaEpochs 1, for instance, the
// multiplier halves every epoch after warmup.
func NewEpochSchedule(cfg EpochScheduleConfig) (Schedule, error) {
	if cfg.BatchesPerEpoch < 1 {
		return nil, fmt.Errorf("batches per epoch must be positive, got %d", cfg.BatchesPerEpoch)
	}
	gammaEpochs := cfg.GammaEpochs
	if gammaEpochs == 0 {
		gammaEpochs = 1
	}
	return NewSchedule(ScheduleConfig{
		TotalSteps:  cfg.Epochs * cfg.BatchesPerEpoch,
		WarmupSteps: cfg.WarmupEpochs * cfg.BatchesPerEpoch,
		Warmup:      cfg.Warmup,
		Decay:       cfg.Decay,
		Gamma:       cfg.Gamma,
		GammaSteps:  gammaEpochs * cfg.BatchesPerEpoch,
	})
}
