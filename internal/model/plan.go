package model

// Strategy tags a retry attempt configuration.
type Strategy string

const (
	StrategyBaseline    Strategy = "BASELINE"
	StrategyHookFirst   Strategy = "HOOK_FIRST"
	StrategyEmotionFirst Strategy = "EMOTION_FIRST"
	StrategyPacingFirst  Strategy = "PACING_FIRST"
	StrategyRescue       Strategy = "RESCUE_MODE"
)

// BaselineStrategies is the ordered retry ladder before rescue.
var BaselineStrategies = []Strategy{
	StrategyBaseline, StrategyHookFirst, StrategyEmotionFirst, StrategyPacingFirst,
}

// Aggression controls cut density, interrupt frequency and judge thresholds.
type Aggression string

const (
	AggressionLow    Aggression = "low"
	AggressionMedium Aggression = "medium"
	AggressionHigh   Aggression = "high"
	AggressionViral  Aggression = "viral"
)

// StrategyToAggression is the canonical one-way map; horizontal mode caps
// the result at medium and history records the post-cap value.
var StrategyToAggression = map[string]Aggression{
	"conservative": AggressionLow,
	"balanced":     AggressionMedium,
	"dynamic":      AggressionHigh,
	"viral":        AggressionViral,
}

// EditPlanMeta carries derived plan statistics.
type EditPlanMeta struct {
	InterruptCount       int      `json:"interruptCount"`
	InterruptDensity     float64  `json:"interruptDensity"` // per minute of output
	BoredomRatio         float64  `json:"boredomRatio"`     // removed / source duration
	AutoEscalationEvents []string `json:"autoEscalationEvents,omitempty"`
	StyleSnapshot        string   `json:"styleSnapshot,omitempty"`
	NicheSnapshot        string   `json:"nicheSnapshot,omitempty"`
	ContentFormat        string   `json:"contentFormat,omitempty"`
	TargetPlatform       string   `json:"targetPlatform,omitempty"`
}

// EditPlan is the full output of the planner: an ordered segment list plus
// the hook, the material removed, and everything the judge needs.
type EditPlan struct {
	Hook             *HookCandidate     `json:"hook,omitempty"`
	HookCandidates   []HookCandidate    `json:"hookCandidates,omitempty"`
	Segments         []Segment          `json:"segments"`
	Silences         []TimeRange        `json:"silences,omitempty"`
	RemovedRanges    []TimeRange        `json:"removedRanges,omitempty"`
	CompressedRanges []TimeRange        `json:"compressedRanges,omitempty"`
	Windows          []EngagementWindow `json:"-"` // derived, re-computed when absent
	ReorderMap       []int              `json:"reorderMap,omitempty"`
	SourceDuration   float64            `json:"sourceDuration"`
	Strategy         Strategy           `json:"strategy"`
	Aggression       Aggression         `json:"aggression"`
	Meta             EditPlanMeta       `json:"meta"`
}

// OutputDuration is the planned on-screen runtime.
func (p *EditPlan) OutputDuration() float64 {
	return TotalOutputDuration(p.Segments)
}

// Clone copies the plan deeply enough for a variant to be mutated freely.
func (p *EditPlan) Clone() *EditPlan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Segments = append([]Segment(nil), p.Segments...)
	cp.Silences = append([]TimeRange(nil), p.Silences...)
	cp.RemovedRanges = append([]TimeRange(nil), p.RemovedRanges...)
	cp.CompressedRanges = append([]TimeRange(nil), p.CompressedRanges...)
	cp.HookCandidates = append([]HookCandidate(nil), p.HookCandidates...)
	cp.ReorderMap = append([]int(nil), p.ReorderMap...)
	if p.Hook != nil {
		h := *p.Hook
		cp.Hook = &h
	}
	return &cp
}
