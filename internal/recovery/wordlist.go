package recovery

// wordList is the fixed recovery wordlist. Exactly 256 entries, so one
// uniformly random byte selects one word. The list is append-only: removing
// or reordering words breaks existing recovery phrases.
var wordList = []string{
	"acid", "acorn", "actor", "adobe", "aged", "agent", "alarm", "album",
	"alley", "amber", "angle", "ankle", "antic", "apple", "apron", "arch",
	"arena", "argon", "arrow", "ash", "aspen", "atlas", "atom", "attic",
	"autumn", "axis", "badge", "bagel", "baker", "bamboo", "banjo", "barn",
	"basalt", "basin", "bay", "beacon", "beam", "bean", "bear", "beech",
	"bell", "belt", "bench", "berry", "birch", "bird", "bison", "blade",
	"blaze", "bloom", "bluff", "board", "bolt", "bonfire", "book", "boot",
	"border", "bough", "bow", "brass", "bread", "breeze", "brick", "bridge",
	"brook", "broom", "bruin", "brush", "buck", "bud", "buoy", "burrow",
	"bush", "butte", "cabin", "cable", "cactus", "cairn", "camel", "candle",
	"canoe", "canvas", "canyon", "cape", "carbon", "card", "cargo", "carp",
	"cedar", "cello", "chain", "chalk", "charm", "chart", "chasm", "cherry",
	"chest", "chime", "cider", "cinder", "circle", "citrus", "clay", "cliff",
	"cloak", "clover", "coast", "cobalt", "cocoa", "comet", "compass", "copper",
	"coral", "cork", "corn", "cotton", "cove", "crane", "crater", "creek",
	"crest", "crow", "crystal", "cumin", "current", "cypress", "daisy", "dawn",
	"delta", "dew", "dome", "drift", "drum", "dune", "dusk", "eagle",
	"earth", "ebony", "echo", "eddy", "elm", "ember", "fable", "falcon",
	"fern", "ferry", "field", "finch", "fjord", "flame", "flint", "flora",
	"foam", "forest", "forge", "fossil", "fox", "frost", "galaxy", "garden",
	"garnet", "geyser", "ginger", "glacier", "glade", "glen", "gold", "gorge",
	"granite", "grape", "grove", "gull", "gust", "harbor", "hawk", "hazel",
	"heron", "hickory", "hill", "hollow", "horizon", "iris", "iron", "island",
	"ivory", "ivy", "jade", "jasper", "jungle", "juniper", "kelp", "kiln",
	"knoll", "lagoon", "lake", "lantern", "larch", "lark", "lava", "leaf",
	"ledge", "lilac", "lily", "linen", "loam", "lotus", "lunar", "lynx",
	"maple", "marble", "marsh", "meadow", "mesa", "mist", "moss", "moth",
	"nectar", "nickel", "north", "oak", "oasis", "ocean", "olive", "onyx",
	"opal", "orchard", "orchid", "osprey", "otter", "owl", "pearl", "pebble",
	"pine", "plume", "polar", "pond", "poplar", "prairie", "quartz", "quill",
	"raven", "reef", "ridge", "river", "rowan", "sage", "sequoia", "shale",
	"shore", "spruce", "stone", "summit", "thorn", "tide", "topaz", "willow",
}

// Words returns the size of the fixed wordlist.
func Words() int { return len(wordList) }
