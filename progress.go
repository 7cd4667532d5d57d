package phyalf

// Stage names a conversion step.
type Stage string

// Conversion stages in execution order.
const (
	StageCopy      Stage = "copy"
	StageSpikes    Stage = "spikes"
	StageClusters  Stage = "clusters"
	StageChannels  Stage = "channels"
	StageDepths    Stage = "depths"
	StageTemplates Stage = "templates"
	StageCleanup   Stage = "cleanup"
	StageRename    Stage = "rename"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageCopy, StageSpikes, StageClusters, StageChannels,
	StageDepths, StageTemplates, StageCleanup, StageRename,
}

// TotalWeight is the sum of all stage weights.
const TotalWeight = 95

// Weight returns the fixed progress weight of s.
func (s Stage) Weight() int {
	switch s {
	case StageCopy, StageSpikes, StageClusters, StageCleanup:
		return 10
	case StageChannels:
		return 5
	case StageDepths:
		return 20
	case StageTemplates:
		return 30
	}
	return 0
}

// ProgressFunc observes completed stages. It never affects control flow.
type ProgressFunc func(stage Stage, weight int)
