package scoring

// Category is a semantic bucket of keywords.
type Category struct {
	Name     string
	Keywords []string
}

// Categories are evaluated in this order; the order is visible in the rationale.
var Categories = []Category{
	{Name: "innovation", Keywords: []string{
		"ai", "artificial intelligence", "revolutionary", "innovative", "novel",
		"breakthrough", "disruptive", "neural", "machine learning", "future",
		"cutting-edge", "quantum",
	}},
	{Name: "technology", Keywords: []string{
		"system", "software", "algorithm", "network", "networks", "neural", "ai",
		"blockchain", "platform", "data", "cloud", "api", "robotics", "automation",
	}},
	{Name: "creativity", Keywords: []string{
		"music", "art", "design", "creative", "story", "generator", "compose",
		"visual", "film", "poetry", "animation", "painting",
	}},
	{Name: "collaboration", Keywords: []string{
		"community", "team", "together", "collaborative", "social", "share",
		"sharing", "open source", "contributors", "co-create", "network",
	}},
	{Name: "impact", Keywords: []string{
		"impact", "sustainable", "environment", "climate", "health", "education",
		"accessibility", "change", "global", "wellbeing", "nonprofit",
	}},
	{Name: "business", Keywords: []string{
		"market", "revenue", "business", "startup", "customers", "monetize",
		"profit", "scale", "subscription", "enterprise", "b2b",
	}},
	{Name: "gaming", Keywords: []string{
		"game", "gaming", "player", "players", "quest", "rpg", "multiplayer",
		"level", "esports", "metaverse",
	}},
	{Name: "utility", Keywords: []string{
		"tool", "utility", "productivity", "efficient", "automation", "assistant",
		"manage", "tracker", "workflow", "solve",
	}},
}

// BonusKeywords each add BonusPoints, without a cap.
var BonusKeywords = []string{
	"revolutionary", "breakthrough", "groundbreaking", "game-changing",
	"world-first", "paradigm", "unprecedented", "visionary",
}

// GenericWords are counted per occurrence for the genericness penalty.
var GenericWords = map[string]bool{
	"thing":     true,
	"things":    true,
	"stuff":     true,
	"something": true,
	"basic":     true,
	"simple":    true,
	"generic":   true,
	"just":      true,
	"very":      true,
	"good":      true,
	"nice":      true,
}

const (
	PointsPerMatch       = 5
	CategoryCap          = 20
	BonusPoints          = 10
	MinDiverseTags       = 3
	PointsPerTag         = 2
	DiversityCap         = 10
	DetailMinLength      = 50
	DetailCharsPerPoint  = 25
	DetailCap            = 15
	GenericThreshold     = 2
	PointsPerGenericWord = 5
	MaxScore             = 100
)
