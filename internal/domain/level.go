package domain

// Milestones is the cumulative point threshold table mapping points to
// basic levels. Milestones[i] = 50*i*(i+1) is the threshold for level
// i+1: 0 points is level 1, 100 points level 2, 300 level 3, up to
// 495000 for level 100.
var Milestones = buildMilestones()

func buildMilestones() [100]int64 {
	var m [100]int64
	for i := range m {
		n := int64(i)
		m[i] = 50 * n * (n + 1)
	}
	return m
}

// MaxLevel is the basic level cap; progress beyond it is legend levels.
const MaxLevel = 100

// MaxLegendLevel caps the legend tier above basic level 100.
const MaxLegendLevel = 10

// PointForLevel is the point total that level computation runs on. VIP
// users level on total_point alone; everyone else also counts their
// weekly history.
func PointForLevel(u *User) int64 {
	if u.IsVIP {
		return u.TotalPoint
	}
	p := u.TotalPoint
	for _, w := range u.WeekHistory {
		p += w.Point
	}
	return p
}

// ComputeLevel returns the basic level, legend level and pro flag for the
// given point total. It is a pure function: recomputing it is idempotent.
func ComputeLevel(pointForLevel int64) (level, legend int, isPro bool) {
	idx := 0
	for i := len(Milestones) - 1; i >= 0; i-- {
		if Milestones[i] <= pointForLevel {
			idx = i
			break
		}
	}
	level = idx + 1

	if level < MaxLevel {
		return level, 0, false
	}

	// At level 100 the overflow past the last milestone is carved into
	// legend levels, 100 points each, capped at 10.
	legend = int((pointForLevel-Milestones[len(Milestones)-1])/100) + 1
	if legend > MaxLegendLevel {
		legend = MaxLegendLevel
	}
	return MaxLevel, legend, true
}

// vipThresholds maps spend amounts to tiers, highest first.
var vipThresholds = []struct {
	amount int64
	tier   VIPTier
}{
	{500, VIPTierDiamond},
	{200, VIPTierEmerald},
	{150, VIPTierRuby},
	{100, VIPTierGold},
	{50, VIPTierSilver},
}

// VIPTierFor derives the VIP tier from a spend amount; below 50 is NONE.
func VIPTierFor(amount int64) VIPTier {
	for _, t := range vipThresholds {
		if amount >= t.amount {
			return t.tier
		}
	}
	return VIPTierNone
}
