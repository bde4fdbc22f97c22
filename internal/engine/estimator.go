package engine

import (
	"time"

	"github.com/roach88/synth/internal/model"
)

// calculateTime is the estimator's only state, re-entered every estimate
// interval. It projects an end time for every pending or processing task
// and reports the last one as the aggregate.
//
// For the k-th counted task (queue order), the number of maintenance holds
// before it finishes is floor((inRow+k)/threshold), minus one when the
// division is exact: a task that completes a streak does not wait for the
// hold it triggers.
//
// While the machine is on maintenance (inRow == threshold) the previous
// estimate is left as is.
func (e *Engine) calculateTime() {
	e.enter(RegionEstimator, EstimatorCalculateTime, EstimatorCalculateTime)
	defer e.schedule(timerEstimatorTick, e.timing.EstimateInterval)

	if len(e.order) == 0 {
		e.estimated = 0
		e.endTime = e.at
		return
	}

	threshold := e.timing.TasksBeforeMaintenance
	if e.inRow == threshold {
		e.logger.Debug("estimate skipped during maintenance", "completed_in_row", e.inRow)
		return
	}

	var work, last time.Duration
	count := 0
	for _, id := range e.order {
		task := e.tasks[id]
		switch task.State.(type) {
		case model.Pending, model.Processing:
		default:
			task.EndTime = time.Time{}
			continue
		}

		count++
		work += time.Duration(task.RemainingWork()) * e.timing.ElementSynthesis
		done := e.inRow + count
		holds := done / threshold
		if done%threshold == 0 {
			holds--
		}

		last = work + time.Duration(holds)*e.timing.OnMaintenance
		task.EndTime = e.at.Add(last)
	}

	e.estimated = last
	e.endTime = e.at.Add(last)
}
