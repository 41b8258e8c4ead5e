package score

import (
	"fmt"
	"sort"
)

// MultiplierRule scales a mention's contribution when any term appears in it.
type MultiplierRule struct {
	Terms  []string
	Factor float64
}

// Constants is the table of thresholds and weights used by Calculate.
type Constants struct {
	PushSentiment   float64
	BurialSentiment float64

	PushMultipliers   []MultiplierRule
	BurialMultipliers []MultiplierRule

	TrendScoreMin        float64
	TrendPushSentiment   float64
	TrendBurialSentiment float64

	OnFireMinMentions  int
	OnFireMinSentiment float64
	OnFireMinPush      float64

	ConfidenceHighMentions int
	Tier1Sources           []string
}

const (
	PresetStandard     = "standard"
	PresetConservative = "conservative"
)

var pushMultipliers = []MultiplierRule{
	{Terms: []string{"champion", "title"}, Factor: 1.5},
	{Terms: []string{"main event"}, Factor: 1.3},
	{Terms: []string{"winner", "victory"}, Factor: 1.2},
}

var burialMultipliers = []MultiplierRule{
	{Terms: []string{"fired", "released"}, Factor: 2.0},
	{Terms: []string{"buried", "jobber"}, Factor: 1.8},
	{Terms: []string{"lose", "defeat"}, Factor: 1.3},
}

// Standard returns the dashboard constants.
func Standard() Constants {
	return Constants{
		PushSentiment:          0.6,
		BurialSentiment:        0.4,
		PushMultipliers:        pushMultipliers,
		BurialMultipliers:      burialMultipliers,
		TrendScoreMin:          2,
		TrendPushSentiment:     0.55,
		TrendBurialSentiment:   0.45,
		OnFireMinMentions:      2,
		OnFireMinSentiment:     0.6,
		OnFireMinPush:          15,
		ConfidenceHighMentions: 5,
	}
}

// Conservative is the stricter variant used by the heatmap widgets: trends
// and the on-fire flag need clearer signals.
func Conservative() Constants {
	c := Standard()
	c.TrendScoreMin = 5
	c.TrendPushSentiment = 0.6
	c.TrendBurialSentiment = 0.4
	c.OnFireMinMentions = 3
	c.OnFireMinSentiment = 0.65
	c.OnFireMinPush = 25
	c.ConfidenceHighMentions = 8
	return c
}

var presets = map[string]func() Constants{
	PresetStandard:     Standard,
	PresetConservative: Conservative,
}

// Preset returns the named constants table. An empty name means standard.
func Preset(name string) (Constants, error) {
	if name == "" {
		name = PresetStandard
	}
	fn, ok := presets[name]
	if !ok {
		return Constants{}, fmt.Errorf("unknown scoring preset %q (want one of %v)", name, PresetNames())
	}
	return fn(), nil
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
