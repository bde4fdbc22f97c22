package engine

// Region names one of the three parallel state regions.
type Region string

const (
	RegionProduction Region = "production"
	RegionQueue      Region = "queue"
	RegionEstimator  Region = "estimator"
)

// ProductionState is the active state of the production region.
type ProductionState string

const (
	ProductionIdle             ProductionState = "idle"
	ProductionTaskStarted      ProductionState = "busy.taskStarted"
	ProductionElementSynthesis ProductionState = "busy.elementSynthesis"
	ProductionTaskCompleted    ProductionState = "busy.taskCompleted"
	ProductionOnMaintenance    ProductionState = "onMaintenance"
)

// Busy reports whether a task is being worked on.
func (s ProductionState) Busy() bool {
	switch s {
	case ProductionTaskStarted, ProductionElementSynthesis, ProductionTaskCompleted:
		return true
	}
	return false
}

// QueueState is the active state of the queue region.
//
// Every state other than waiting is transient: a command passes through
// them within its own step, so snapshots always observe QueueWaiting.
type QueueState string

const (
	QueueWaiting          QueueState = "waiting"
	QueueTaskEnqueueing   QueueState = "taskEnqueueing"
	QueueTaskEditing      QueueState = "taskEditing"
	QueueTaskDeleting     QueueState = "taskDeleting"
	QueueSortByPriorities QueueState = "sortByPriorities"
)

// EstimatorCalculateTime is the only state of the estimator region.
const EstimatorCalculateTime = "calculateTime"

// Transition records one state change inside a step.
// Self-transitions (re-entering elementSynthesis or calculateTime) have
// From == To.
type Transition struct {
	Region Region `json:"region"`
	From   string `json:"from"`
	To     string `json:"to"`
}
