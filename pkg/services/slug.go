package services

import (
	"math/rand/v2"
	"strings"
)

var (
	slugAdjectives = []string{
		"brave", "calm", "clever", "eager", "fancy", "gentle", "happy", "jolly",
		"kind", "lively", "lucky", "mighty", "noble", "polite", "proud", "quick",
		"quiet", "rapid", "shiny", "silly", "smart", "sunny", "swift", "tidy",
		"witty", "zealous", "bold", "bright", "cosmic", "crisp", "daring", "fresh",
	}

	slugColors = []string{
		"amber", "azure", "black", "blue", "bronze", "coral", "crimson", "cyan",
		"gold", "green", "indigo", "ivory", "jade", "lime", "magenta", "maroon",
		"navy", "olive", "orange", "pink", "plum", "purple", "red", "ruby",
		"salmon", "silver", "teal", "violet", "white", "yellow",
	}

	slugNouns = []string{
		"badger", "beaver", "comet", "coyote", "dolphin", "eagle", "falcon", "ferret",
		"fox", "gecko", "heron", "jaguar", "koala", "lemur", "lynx", "meteor",
		"moose", "nebula", "otter", "owl", "panda", "parrot", "pelican", "penguin",
		"planet", "puma", "raven", "river", "salmon", "tiger", "walrus", "zebra",
	}
)

// randomSlug returns a three word name such as "brave-orange-falcon".
func randomSlug() string {
	words := []string{
		slugAdjectives[rand.IntN(len(slugAdjectives))],
		slugColors[rand.IntN(len(slugColors))],
		slugNouns[rand.IntN(len(slugNouns))],
	}

	return strings.Join(words, "-")
}
