package downloader

import (
	"math/rand"
	"strings"
)

const keywordPlaceholder = "{keyword}"

// variationCatalog holds the search-term templates, grouped by theme. Each
// template carries a {keyword} placeholder.
var variationCatalog = map[string][]string{
	"quality": {
		"{keyword} high resolution",
		"{keyword} high quality",
		"{keyword} hd",
		"{keyword} 4k",
		"{keyword} ultra hd",
		"{keyword} sharp focus",
		"{keyword} crisp",
		"{keyword} detailed",
		"{keyword} professional photo",
		"{keyword} studio quality",
		"{keyword} large image",
		"{keyword} clear photo",
		"{keyword} full size",
		"{keyword} best quality",
		"{keyword} wallpaper",
	},
	"style": {
		"{keyword} photograph",
		"{keyword} photography",
		"{keyword} realistic",
		"{keyword} artistic",
		"{keyword} minimalist",
		"{keyword} aesthetic",
		"{keyword} editorial",
		"{keyword} candid",
		"{keyword} documentary style",
		"{keyword} fine art",
		"{keyword} stock photo",
		"{keyword} portrait",
		"{keyword} still life",
		"{keyword} commercial photo",
		"{keyword} lifestyle photo",
	},
	"era": {
		"{keyword} modern",
		"{keyword} contemporary",
		"{keyword} vintage",
		"{keyword} retro",
		"{keyword} classic",
		"{keyword} antique",
		"{keyword} old fashioned",
		"{keyword} traditional",
		"{keyword} historical",
		"{keyword} nostalgic",
		"{keyword} new",
		"{keyword} latest",
		"{keyword} old",
		"{keyword} timeless",
		"{keyword} futuristic",
	},
	"lighting": {
		"{keyword} natural light",
		"{keyword} daylight",
		"{keyword} golden hour",
		"{keyword} soft light",
		"{keyword} studio lighting",
		"{keyword} backlit",
		"{keyword} bright",
		"{keyword} well lit",
		"{keyword} sunny",
		"{keyword} sunset",
		"{keyword} sunrise",
		"{keyword} dramatic lighting",
		"{keyword} low light",
		"{keyword} night",
		"{keyword} ambient light",
	},
	"camera": {
		"{keyword} close up",
		"{keyword} closeup",
		"{keyword} macro",
		"{keyword} wide angle",
		"{keyword} top view",
		"{keyword} side view",
		"{keyword} front view",
		"{keyword} aerial view",
		"{keyword} overhead shot",
		"{keyword} telephoto",
		"{keyword} shallow depth of field",
		"{keyword} bokeh",
		"{keyword} full frame",
		"{keyword} zoomed in",
		"{keyword} panoramic",
	},
	"color": {
		"{keyword} colorful",
		"{keyword} vibrant",
		"{keyword} black and white",
		"{keyword} monochrome",
		"{keyword} pastel",
		"{keyword} saturated colors",
		"{keyword} muted colors",
		"{keyword} warm tones",
		"{keyword} cool tones",
		"{keyword} sepia",
		"{keyword} bright colors",
		"{keyword} dark tones",
		"{keyword} natural colors",
		"{keyword} high contrast",
		"{keyword} soft colors",
	},
	"location": {
		"{keyword} outdoor",
		"{keyword} indoor",
		"{keyword} in nature",
		"{keyword} at home",
		"{keyword} in the city",
		"{keyword} urban",
		"{keyword} rural",
		"{keyword} on the street",
		"{keyword} in the wild",
		"{keyword} countryside",
		"{keyword} garden",
		"{keyword} park",
		"{keyword} beach",
		"{keyword} mountains",
		"{keyword} forest",
	},
	"background": {
		"{keyword} white background",
		"{keyword} black background",
		"{keyword} plain background",
		"{keyword} isolated",
		"{keyword} transparent background",
		"{keyword} blurred background",
		"{keyword} clean background",
		"{keyword} neutral background",
		"{keyword} solid background",
		"{keyword} simple background",
		"{keyword} textured background",
		"{keyword} gradient background",
		"{keyword} wooden background",
		"{keyword} colored background",
		"{keyword} studio background",
	},
	"condition": {
		"{keyword} brand new",
		"{keyword} used",
		"{keyword} worn",
		"{keyword} pristine",
		"{keyword} mint condition",
		"{keyword} weathered",
		"{keyword} aged",
		"{keyword} damaged",
		"{keyword} restored",
		"{keyword} polished",
		"{keyword} rustic",
		"{keyword} fresh",
		"{keyword} clean",
		"{keyword} rough",
		"{keyword} smooth",
	},
	"generic": {
		"{keyword} image",
		"{keyword} photo",
		"{keyword} picture",
		"{keyword} pic",
		"{keyword} shot",
		"{keyword} snapshot",
		"{keyword} gallery",
		"{keyword} collection",
		"{keyword} examples",
		"{keyword} real",
		"{keyword} authentic",
		"{keyword} original",
		"{keyword} genuine",
		"{keyword} typical",
		"{keyword} beautiful",
	},
}

// flatCatalog is the catalog flattened in stable group order; built once.
var flatCatalog = func() []string {
	groups := []string{
		"quality", "style", "era", "lighting", "camera",
		"color", "location", "background", "condition", "generic",
	}
	var all []string
	for _, g := range groups {
		all = append(all, variationCatalog[g]...)
	}
	return all
}()

// applyVariation substitutes the keyword into a template.
func applyVariation(template, keyword string) string {
	return strings.ReplaceAll(template, keywordPlaceholder, keyword)
}

// variationCount sizes the subset for a run: larger targets request more
// variations, with a floor of 3 and a cap at the catalog size.
func variationCount(maxNum int) int {
	count := maxNum / 5
	if count < 3 {
		count = 3
	}
	if count > len(flatCatalog) {
		count = len(flatCatalog)
	}
	return count
}

// selectVariations returns a bounded, shuffled subset of templates applied
// to the keyword.
func selectVariations(rng *rand.Rand, keyword string, maxNum int) []string {
	count := variationCount(maxNum)
	shuffled := make([]string, len(flatCatalog))
	copy(shuffled, flatCatalog)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	selected := make([]string, 0, count)
	for _, template := range shuffled[:count] {
		selected = append(selected, applyVariation(template, keyword))
	}
	return selected
}

// fallbackSuffixes are the suffix variants the single-source downloader
// escalates through when the primary keyword under-delivers.
var fallbackSuffixes = []string{
	"{keyword} image",
	"{keyword} photo",
	"{keyword} high quality",
	"{keyword} closeup",
	"{keyword} detailed",
}

func fallbackTerms(keyword string) []string {
	terms := make([]string, 0, len(fallbackSuffixes))
	for _, template := range fallbackSuffixes {
		terms = append(terms, applyVariation(template, keyword))
	}
	return terms
}

// escalationTerms feed the retry controller, ordered from plain variants to
// increasingly unusual ones so later retries reach result pages the earlier
// attempts never saw.
var escalationTerms = []string{
	"{keyword} photo",
	"{keyword} picture",
	"{keyword} high quality",
	"real {keyword}",
	"{keyword} close up",
	"{keyword} professional photo",
	"{keyword} different angle",
	"unusual {keyword}",
	"rare {keyword}",
	"{keyword} unconventional view",
	"obscure {keyword} photograph",
	"{keyword} experimental shot",
}

// alternateTerm derives the keyword term for retry n (1-based). Each retry
// in a budget up to len(escalationTerms) gets a distinct term.
func alternateTerm(keyword string, retry int) string {
	if retry < 1 {
		return keyword
	}
	template := escalationTerms[(retry-1)%len(escalationTerms)]
	return applyVariation(template, keyword)
}
