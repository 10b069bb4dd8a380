package processor

import "math"

// Stage is a processing state. Runs move initializing, processing, encoding,
// finalizing, complete; cancelled is reachable from processing.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageProcessing   Stage = "processing"
	StageEncoding     Stage = "encoding"
	StageFinalizing   Stage = "finalizing"
	StageComplete     Stage = "complete"
	StageCancelled    Stage = "cancelled"
)

// Progress is reported at each stage transition and after every frame.
type Progress struct {
	CurrentFrame int
	TotalFrames  int
	Percentage   int
	Stage        Stage
}

// ProgressFunc receives progress events on the processing goroutine.
type ProgressFunc func(Progress)

func newProgress(stage Stage, current, total int) Progress {
	pct := 0
	if total > 0 {
		pct = int(math.Round(100 * float64(current) / float64(total)))
	}
	return Progress{CurrentFrame: current, TotalFrames: total, Percentage: pct, Stage: stage}
}
