// Package log defines standard attribute keys for imputation operations.
//
// Using these keys consistently makes it possible to filter a run's logs by
// column, round or phase when debugging a chained-equations pass.
package log

// Model and operation context.
const (
	// ModelNameKey identifies the model or orchestrator type.
	// Examples: "LinReg", "LogReg", "Imputer", "MI", "MICE"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: OperationFit, OperationPredict, OperationImpute,
	// OperationSplit, OperationPool.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "linear", "impute", "tensor"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the pipeline.
	// Examples: "training", "imputation", "pooling"
	PhaseKey = "ml.phase"

	// OptimizerKey records the optimizer tag used by a fit ("bgd", "mbgd",
	// or "closed-form").
	OptimizerKey = "ml.optimizer"

	// ModeKey records the imputation mode ("stochastic" or "batched").
	ModeKey = "ml.mode"
)

// Data shape.
const (
	// SamplesKey is the number of rows in the dataset being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// PartitionsKey is the number of per-party row partitions of a
	// horizontally partitioned dataset.
	PartitionsKey = "data.partitions"
)

// Imputation context.
const (
	// ColumnKey is the index of the column currently being imputed.
	ColumnKey = "impute.column"

	// FactorKey is the number of imputed datasets generated and pooled.
	FactorKey = "impute.factor"

	// RoundKey is the current imputation round, in [0, factor).
	RoundKey = "impute.round"

	// MissingRowsKey is the number of rows with a missing value in the
	// target column.
	MissingRowsKey = "impute.missing_rows"

	// NoiseScaleKey is the prediction-noise scale of the round.
	NoiseScaleKey = "impute.noise_scale"
)

// Performance.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// EpochsKey records the number of gradient-descent epochs of a fit.
	EpochsKey = "perf.epochs"
)

// Standard operation values for OperationKey.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationImpute  = "impute"
	OperationSplit   = "split"
	OperationPool    = "pool"
)

// Standard phase values for PhaseKey.
const (
	PhaseTraining   = "training"
	PhaseImputation = "imputation"
	PhasePooling    = "pooling"
	PhaseInference  = "inference"
)
