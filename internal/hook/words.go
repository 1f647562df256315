package hook

var adjectives = []string{
	"able", "agile", "amber", "ancient", "arctic", "autumn", "bitter", "black",
	"blue", "bold", "brave", "bright", "broad", "calm", "chilly", "clever",
	"cold", "cool", "coral", "crimson", "curly", "daring", "dark", "dawn",
	"deep", "divine", "dry", "eager", "early", "fancy", "fast", "fierce",
	"floral", "free", "fresh", "frosty", "gentle", "gifted", "golden", "grand",
	"green", "happy", "hidden", "holy", "humble", "icy", "ideal", "jolly",
	"keen", "kind", "late", "lively", "lone", "long", "loud", "lucky",
	"mellow", "mighty", "misty", "modern", "muddy", "nimble", "noble", "odd",
	"old", "orange", "pale", "patient", "plain", "polite", "proud", "purple",
	"quick", "quiet", "rapid", "rare", "red", "rough", "round", "royal",
	"rustic", "sandy", "sharp", "shiny", "silent", "silver", "sleepy", "small",
	"smooth", "snowy", "soft", "solar", "spring", "steep", "still", "summer",
	"sunny", "swift", "tall", "tiny", "twilight", "vast", "violet", "warm",
	"wild", "winter", "wise", "young",
}

var animals = []string{
	"ant", "badger", "bat", "bear", "beaver", "bee", "bison", "boar",
	"camel", "cat", "cheetah", "cobra", "condor", "crab", "crane", "crow",
	"deer", "dingo", "dolphin", "donkey", "dove", "duck", "eagle", "eel",
	"elk", "falcon", "ferret", "finch", "fox", "frog", "gazelle", "gecko",
	"gibbon", "goat", "goose", "gull", "hare", "hawk", "hedgehog", "heron",
	"horse", "hyena", "ibis", "iguana", "impala", "jackal", "jaguar", "koala",
	"lemur", "leopard", "lion", "lizard", "llama", "lynx", "magpie", "marmot",
	"marten", "mole", "moose", "moth", "mouse", "mule", "newt", "octopus",
	"orca", "osprey", "otter", "owl", "panda", "panther", "parrot", "pelican",
	"penguin", "pigeon", "pony", "puffin", "puma", "quail", "rabbit", "raccoon",
	"raven", "robin", "salmon", "seal", "shark", "sheep", "shrew", "skunk",
	"sloth", "snail", "sparrow", "spider", "squid", "stork", "swan", "tiger",
	"toad", "trout", "turtle", "walrus", "weasel", "whale", "wolf", "wombat",
	"wren", "yak", "zebra",
}
