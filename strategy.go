package fieldsync

// OptimizationLevel is one of the four adaptation levels. Exactly one level
// is active at a time.
type OptimizationLevel string

const (
	LevelMinimal    OptimizationLevel = "minimal"
	LevelModerate   OptimizationLevel = "moderate"
	LevelAggressive OptimizationLevel = "aggressive"
	LevelEmergency  OptimizationLevel = "emergency"
)

// OptimizationTechnique is one named resource-saving behavior. Techniques are
// activated and deactivated as a set, never individually.
type OptimizationTechnique string

const (
	TechniqueAggressiveCaching     OptimizationTechnique = "aggressive_caching"
	TechniqueRequestPrioritization OptimizationTechnique = "request_prioritization"
	TechniqueLazyLoading           OptimizationTechnique = "lazy_loading"
	TechniqueDataCompression       OptimizationTechnique = "data_compression"
	TechniqueImageCompression      OptimizationTechnique = "image_compression"
	TechniqueRequestBatching       OptimizationTechnique = "request_batching"
	TechniqueAnimationReduction    OptimizationTechnique = "animation_reduction"
	TechniqueReducedPolling        OptimizationTechnique = "reduced_polling"
	TechniqueOfflineFirstDelivery  OptimizationTechnique = "offline_first_delivery"
	TechniquePauseBackgroundWork   OptimizationTechnique = "pause_background_work"
)

// AdaptationStrategy is the active level together with its fixed, ordered
// technique set. Each level's set strictly extends the previous level's.
type AdaptationStrategy struct {
	Level      OptimizationLevel       `json:"level"`
	Techniques []OptimizationTechnique `json:"techniques"`
}

// techniquesByLevel holds the fixed technique list per level, in activation
// order.
var techniquesByLevel = map[OptimizationLevel][]OptimizationTechnique{
	LevelMinimal: {
		TechniqueAggressiveCaching,
		TechniqueRequestPrioritization,
	},
	LevelModerate: {
		TechniqueAggressiveCaching,
		TechniqueRequestPrioritization,
		TechniqueLazyLoading,
		TechniqueDataCompression,
	},
	LevelAggressive: {
		TechniqueAggressiveCaching,
		TechniqueRequestPrioritization,
		TechniqueLazyLoading,
		TechniqueDataCompression,
		TechniqueImageCompression,
		TechniqueRequestBatching,
		TechniqueAnimationReduction,
		TechniqueReducedPolling,
	},
	LevelEmergency: {
		TechniqueAggressiveCaching,
		TechniqueRequestPrioritization,
		TechniqueLazyLoading,
		TechniqueDataCompression,
		TechniqueImageCompression,
		TechniqueRequestBatching,
		TechniqueAnimationReduction,
		TechniqueReducedPolling,
		TechniqueOfflineFirstDelivery,
		TechniquePauseBackgroundWork,
	},
}

// StrategyForLevel returns the fixed strategy for a level. The technique
// slice is a copy; callers may not mutate the canonical sets.
func StrategyForLevel(level OptimizationLevel) AdaptationStrategy {
	set := techniquesByLevel[level]
	techniques := make([]OptimizationTechnique, len(set))
	copy(techniques, set)
	return AdaptationStrategy{Level: level, Techniques: techniques}
}

// LevelForCondition is the deterministic mapping from monitor output to an
// optimization level. The battery override forces emergency irrespective of
// the network tier.
func LevelForCondition(tier NetworkQuality, batteryOverride bool) OptimizationLevel {
	if batteryOverride {
		return LevelEmergency
	}
	switch tier {
	case NetworkExcellent:
		return LevelMinimal
	case NetworkGood:
		return LevelModerate
	case NetworkPoor:
		return LevelAggressive
	default:
		return LevelEmergency
	}
}

// Active reports whether the strategy includes a technique.
func (s AdaptationStrategy) Active(t OptimizationTechnique) bool {
	for _, have := range s.Techniques {
		if have == t {
			return true
		}
	}
	return false
}
