package fieldsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForCondition(t *testing.T) {
	assert.Equal(t, LevelMinimal, LevelForCondition(NetworkExcellent, false))
	assert.Equal(t, LevelModerate, LevelForCondition(NetworkGood, false))
	assert.Equal(t, LevelAggressive, LevelForCondition(NetworkPoor, false))
	assert.Equal(t, LevelEmergency, LevelForCondition(NetworkCritical, false))
}

func TestLevelForCondition_BatteryOverride(t *testing.T) {
	// Low battery forces emergency regardless of network tier
	for _, tier := range []NetworkQuality{NetworkExcellent, NetworkGood, NetworkPoor, NetworkCritical} {
		assert.Equal(t, LevelEmergency, LevelForCondition(tier, true))
	}
}

func TestStrategyForLevel_CumulativeSets(t *testing.T) {
	minimal := StrategyForLevel(LevelMinimal)
	moderate := StrategyForLevel(LevelModerate)
	aggressive := StrategyForLevel(LevelAggressive)
	emergency := StrategyForLevel(LevelEmergency)

	assert.Len(t, minimal.Techniques, 2)
	assert.Len(t, moderate.Techniques, 4)
	assert.Len(t, aggressive.Techniques, 8)
	assert.Len(t, emergency.Techniques, 10)

	// Each level strictly extends the previous one
	for i, technique := range minimal.Techniques {
		assert.Equal(t, technique, moderate.Techniques[i])
	}
	for i, technique := range moderate.Techniques {
		assert.Equal(t, technique, aggressive.Techniques[i])
	}
	for i, technique := range aggressive.Techniques {
		assert.Equal(t, technique, emergency.Techniques[i])
	}
}

func TestStrategyForLevel_ReturnsCopy(t *testing.T) {
	s := StrategyForLevel(LevelMinimal)
	s.Techniques[0] = TechniquePauseBackgroundWork

	fresh := StrategyForLevel(LevelMinimal)
	assert.Equal(t, TechniqueAggressiveCaching, fresh.Techniques[0])
}

func TestStrategyActive(t *testing.T) {
	s := StrategyForLevel(LevelModerate)
	assert.True(t, s.Active(TechniqueLazyLoading))
	assert.False(t, s.Active(TechniqueImageCompression))
	assert.False(t, s.Active(TechniquePauseBackgroundWork))
}
