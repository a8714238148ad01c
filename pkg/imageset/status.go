package imageset

import (
	"fmt"

	"polstokes/pkg/polerr"
	"polstokes/pkg/region"
	"polstokes/pkg/registration"
)

// Stage names one step of the processing chain.
type Stage string

const (
	StageSum        Stage = "sum"
	StageAlign      Stage = "align"
	StageBackground Stage = "background_subtract"
	StageBinning    Stage = "binning"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageSum, StageAlign, StageBackground, StageBinning}

// Status is the progress of one stage.
type Status string

const (
	Pending  Status = "PENDING"
	Perform  Status = "PERFORM"
	Complete Status = "COMPLETE"
	Skipped  Status = "SKIPPED"
)

// prerequisite returns the stage that must be complete before s may run.
func prerequisite(s Stage) (Stage, bool) {
	for i, st := range Stages {
		if st == s && i > 0 {
			return Stages[i-1], true
		}
	}
	return "", false
}

// Method selects the background estimator.
type Method string

const (
	MethodMean   Method = "mean"
	MethodMedian Method = "median"
)

// ParseMethod validates an estimator name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodMean, MethodMedian:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown background method %q (must be mean or median)", polerr.ErrInvalidParameter, s)
}

// Detail records the parameters a stage derived for one polarizer.
type Detail struct {
	// Shift is the offset applied by alignment.
	Shift *registration.Offset
	// Background is the level removed by background subtraction and
	// BackgroundNoise its spread over Region.
	Background      *float64
	BackgroundNoise *float64
	Region          region.Region
	Method          Method
	// BinSize is set by binning.
	BinSize int
}
