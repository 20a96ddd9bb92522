package expression

import (
	"strings"
)

// Aura 由情绪标记得出的头像氛围色
type Aura string

const (
	Calm     Aura = "calm"
	Happy    Aura = "happy"
	Blushing Aura = "blushing"
	Angry    Aura = "angry"
	Excited  Aura = "excited"
	Sad      Aura = "sad"
)

// Motion 由动作标记得出的头像动作
type Motion string

const (
	Still    Motion = "none"
	Dance    Motion = "dance"
	Wave     Motion = "wave"
	Bow      Motion = "bow"
	Hug      Motion = "hug"
	Pout     Motion = "pout"
	Fidget   Motion = "fidget"
	Jump     Motion = "jump"
	TurnAway Motion = "turn-away"
)

// Expression 单条回复对应的头像表现
type Expression struct {
	Aura   Aura   `json:"aura"`
	Motion Motion `json:"motion"`
}

var auraBuckets = map[Aura][]string{
	Happy: {
		"happy", "smile", "smiles", "grin", "giggle", "laugh", "cheerful", "glad", "joy", "content",
	},
	Blushing: {
		"blush", "flustered", "embarrass", "shy", "bashful", "flushed", "tsun",
	},
	Angry: {
		"angry", "annoyed", "huff", "furious", "irritat", "mad", "glare", "scowl", "pout", "baka",
	},
	Excited: {
		"excited", "thrilled", "energetic", "hyper", "eager", "ecstatic", "cheer", "wow",
	},
	Sad: {
		"sad", "lonely", "tear", "cry", "sigh", "hurt", "gloomy", "melanchol",
	},
}

var motionBuckets = map[Motion][]string{
	Dance:    {"danc", "spin", "twirl"},
	Wave:     {"wav"},
	Bow:      {"bow", "nod"},
	Hug:      {"hug", "embrace", "cuddle", "grabs your hand"},
	Pout:     {"pout", "crosses arms"},
	Fidget:   {"fidget", "sleeve", "looks down", "fiddl"},
	Jump:     {"jump", "bounce", "hop"},
	TurnAway: {"turns away", "turns face away", "looks away"},
}

// auraPriority 在得分相同时决定优先级
var auraPriority = []Aura{Blushing, Angry, Excited, Happy, Sad}

var motionPriority = []Motion{Hug, Dance, Wave, Bow, Jump, Pout, TurnAway, Fidget}

// Analyze 将自由文本的情绪与动作标记映射到头像词表。
// 未知标记映射为 Calm 与 Still，标记本身不做修改。
func Analyze(emotion, gesture string) Expression {
	return Expression{
		Aura:   classifyAura(emotion),
		Motion: classifyMotion(gesture),
	}
}

func classifyAura(marker string) Aura {
	normalized := normalize(marker)
	if normalized == "" {
		return Calm
	}

	best, bestScore := Calm, 0
	for _, label := range auraPriority {
		score := scoreText(normalized, auraBuckets[label])
		if score > bestScore {
			best, bestScore = label, score
		}
	}

	// "*jumps excitedly!*" 这类标记偏向兴奋。
	if best == Happy && strings.Count(marker, "!") > 0 {
		return Excited
	}
	return best
}

func classifyMotion(marker string) Motion {
	normalized := normalize(marker)
	if normalized == "" {
		return Still
	}

	best, bestScore := Still, 0
	for _, label := range motionPriority {
		score := scoreText(normalized, motionBuckets[label])
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return best
}

func scoreText(normalized string, keywords []string) int {
	score := 0
	for _, word := range keywords {
		if strings.Contains(normalized, word) {
			score += 3
		}
	}
	return score
}

func normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}
