package payload

// TaskHealth is a coarse inferred health signal for the current run.
type TaskHealth string

const (
	// TaskHealthOnTrack indicates no concerning signals have been observed.
	TaskHealthOnTrack TaskHealth = "on_track"
	// TaskHealthAtRisk indicates early warning signals (repeated redesigns,
	// several failures) have been observed.
	TaskHealthAtRisk TaskHealth = "at_risk"
	// TaskHealthOffTrack indicates the run is unlikely to succeed without
	// intervention.
	TaskHealthOffTrack TaskHealth = "off_track"
)

// EnvContext is a snapshot of raw runtime metrics captured at a point in
// time. It carries no inferences of its own; detectors consume it to
// produce a DetectedContext.
type EnvContext struct {
	RedesignCount       int
	FailureCountByStep  map[string]int
	SuccessRate         float64
	ConsecutiveFailures int
	TotalSteps          int
	StrategyPhase       string
}

// Clone returns a deep copy of the EnvContext so callers can mutate the
// copy without affecting payload history.
func (e EnvContext) Clone() EnvContext {
	out := e
	if e.FailureCountByStep != nil {
		out.FailureCountByStep = make(map[string]int, len(e.FailureCountByStep))
		for k, v := range e.FailureCountByStep {
			out.FailureCountByStep[k] = v
		}
	}
	return out
}

// DetectedContext is an inferred semantic state for the current run.
// Detectors are additive: merging two DetectedContexts unions their lists
// and keeps later-arriving scalar fields, never mutating either operand.
type DetectedContext struct {
	TaskType    string
	TaskHealth  TaskHealth
	UserStates  []string
	Confidence  map[string]float64
	DetectedBy  []string
}

// Merge returns a new DetectedContext combining d and next. Scalar fields
// from next win when set; UserStates and DetectedBy are unioned in
// insertion order; Confidence keys from next overwrite matching keys from
// d. Neither d nor next is mutated.
func (d DetectedContext) Merge(next DetectedContext) DetectedContext {
	out := DetectedContext{
		TaskType:   d.TaskType,
		TaskHealth: d.TaskHealth,
		Confidence: make(map[string]float64, len(d.Confidence)+len(next.Confidence)),
	}
	for k, v := range d.Confidence {
		out.Confidence[k] = v
	}
	if next.TaskType != "" {
		out.TaskType = next.TaskType
	}
	if next.TaskHealth != "" {
		out.TaskHealth = next.TaskHealth
	}
	for k, v := range next.Confidence {
		out.Confidence[k] = v
	}
	out.UserStates = unionStrings(d.UserStates, next.UserStates)
	out.DetectedBy = unionStrings(d.DetectedBy, next.DetectedBy)
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// TimelineEntry pairs a raw EnvContext snapshot with an optional inference
// made from it. Detection is optional (spec detection_mode = None), hence
// Detected is a pointer.
type TimelineEntry struct {
	Env      EnvContext
	Detected *DetectedContext
}
