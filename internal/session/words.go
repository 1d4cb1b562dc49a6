package session

// wordList is the vocabulary for long tokens. Entries are unique, lowercase
// and contain no "/".
var wordList = [...]string{
	"apple", "apricot", "avocado", "bagel", "banana", "basil", "bean", "berry",
	"biscuit", "bread", "brie", "brownie", "butter", "cabbage", "cake", "candy",
	"caramel", "carrot", "cashew", "celery", "cheddar", "cherry", "chili",
	"chive", "chocolate", "cinnamon", "clove", "cocoa", "coconut", "cookie",
	"corn", "cracker", "cream", "crepe", "croissant", "cucumber", "cumin",
	"cupcake", "curry", "custard", "date", "dill", "donut", "dumpling",
	"eclair", "egg", "endive", "fennel", "feta", "fig", "flan", "fudge",
	"garlic", "ginger", "gnocchi", "gouda", "granola", "grape", "gravy",
	"guava", "ham", "hazelnut", "herb", "honey", "hummus", "jam", "jelly",
	"kale", "kebab", "ketchup", "kiwi", "lasagna", "leek", "lemon", "lentil",
	"lettuce", "lime", "lychee", "macaroni", "mango", "maple", "marzipan",
	"melon", "mint", "miso", "muffin", "mushroom", "mustard", "nacho", "noodle",
	"nougat", "nutmeg", "oat", "olive", "onion", "orange", "oregano", "oyster",
	"paella", "pancake", "papaya", "paprika", "parsley", "pasta", "peach",
	"peanut", "pear", "pecan", "pepper", "pesto", "pickle", "pie", "pistachio",
	"pita", "plum", "popcorn", "potato", "pretzel", "pudding", "pumpkin",
	"quiche", "quinoa", "radish", "raisin", "ramen", "raspberry", "ravioli",
	"relish", "rhubarb", "rice", "risotto", "roll", "rye", "saffron", "sage",
	"salad", "salami", "salsa", "salt", "sandwich", "sauce", "sausage", "scone",
	"sesame", "shallot", "sherbet", "soup", "spinach", "sprout", "squash",
	"stew", "strudel", "sugar", "sushi", "syrup", "taco", "tahini", "tangerine",
	"tart", "thyme", "toast", "toffee", "tofu", "tomato", "tortilla", "truffle",
	"turnip", "vanilla", "vinegar", "waffle", "walnut", "wasabi", "yam",
	"yogurt", "zucchini", "acorn", "amber", "anchor", "arrow", "aspen", "badge",
	"bamboo", "barley", "beacon", "birch", "blossom", "breeze", "brook",
	"cactus", "canyon", "cedar", "cinder", "clover", "comet", "coral", "cosmos",
	"crystal", "daisy", "delta", "dune", "ember", "fern", "field", "flint",
	"forest", "frost", "galaxy", "garden", "glacier", "grove", "harbor",
	"hazel", "heron", "island", "ivy", "jade", "jasper", "juniper", "lagoon",
	"lantern", "lark", "laurel", "lotus", "lunar", "meadow", "mesa", "meteor",
	"mist", "moss", "nebula", "oak", "ocean", "orchid", "otter", "pebble",
	"pine", "planet", "pond", "prairie", "quartz", "raven", "reef", "ridge",
	"river", "robin", "saga", "sequoia", "shadow", "shore", "sierra", "sky",
	"slate", "spark", "spruce", "star", "stone", "summit", "sunset", "thistle",
	"thunder", "tide", "timber", "topaz", "tulip", "valley", "willow", "wind",
}
