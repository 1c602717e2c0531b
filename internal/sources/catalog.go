// Package sources holds the fixed source and region catalog the prompts are
// built from, plus resolution of user-supplied custom sources.
package sources

import "slices"

const (
	// AllSources is the filter sentinel meaning "no source restriction".
	AllSources = "All Sources"
	// AllRegions is the filter sentinel meaning "no language/region restriction".
	AllRegions = "All Languages/Regions"
)

var defaults = []string{
	"X",
	"YouTube",
	"ITmedia NEWS AI+",
	"@IT",
	"MONOist",
	"ITmedia Enterprise",
	"TechCrunch Japan",
	"ZDNet Japan",
	"CodeZine",
	"PublicKey",
	"gihyo.jp",
	"Note",
	"Qiita",
	"Zenn",
	"HackerNews",
	"dev.to",
	"Tech Blogs",
}

// wellKnown replaces the AllSources sentinel inside prompts.
var wellKnown = []string{
	"famous tech news sites",
	"influential blogs",
	"X",
	"YouTube",
	"Note",
	"Qiita",
	"Zenn",
	"HackerNews",
	"dev.to",
	"CodeZine",
	"PublicKey",
	"gihyo.jp",
	"ZDNet Japan",
	"TechCrunch Japan",
	"ITmedia NEWS AI+",
	"@IT",
	"MONOist",
	"ITmedia Enterprise",
}

// popularityRanked are the sources whose items carry engagement signals
// (likes, views, stocks) worth ranking by.
var popularityRanked = []string{"Note", "YouTube", "Qiita", "Zenn"}

var regions = []string{
	"Japanese",
	"English (US)",
	"English (UK)",
	"Korean",
	"Chinese",
}

var loginServices = []string{"X", "YouTube", "Qiita", "Zenn"}

var refreshIntervals = []int{0, 1, 3, 5}

// Defaults returns the built-in source names in display order.
func Defaults() []string { return slices.Clone(defaults) }

// WellKnown returns the source list substituted for AllSources in prompts.
func WellKnown() []string { return slices.Clone(wellKnown) }

// PopularityRanked returns the sources that trigger the popularity instruction.
func PopularityRanked() []string { return slices.Clone(popularityRanked) }

// Regions returns the selectable languages/regions, without the sentinel.
func Regions() []string { return slices.Clone(regions) }

// LoginServices returns the services offered by the mock login.
func LoginServices() []string { return slices.Clone(loginServices) }

// RefreshIntervals returns the selectable auto-refresh intervals in hours.
func RefreshIntervals() []int { return slices.Clone(refreshIntervals) }

// IsDefault reports whether name is one of the built-in sources.
func IsDefault(name string) bool {
	return slices.Contains(defaults, name)
}

// IsLoginService reports whether the mock login accepts service.
func IsLoginService(service string) bool {
	return slices.Contains(loginServices, service)
}

// IsValidInterval reports whether hours is a selectable refresh interval.
func IsValidInterval(hours int) bool {
	return slices.Contains(refreshIntervals, hours)
}

// AnySource reports whether the selection places no restriction on sources.
func AnySource(selected []string) bool {
	return len(selected) == 0 || slices.Contains(selected, AllSources)
}

// AnyRegion reports whether the selection places no restriction on regions.
func AnyRegion(selected []string) bool {
	return len(selected) == 0 || slices.Contains(selected, AllRegions)
}

// WantsPopularity reports whether the popularity instruction applies.
func WantsPopularity(selected []string) bool {
	if slices.Contains(selected, AllSources) {
		return true
	}
	for _, s := range selected {
		if slices.Contains(popularityRanked, s) {
			return true
		}
	}
	return false
}

// Options returns the full list shown in the source filter: the sentinel,
// the built-ins and then the user's custom sources.
func Options(custom []string) []string {
	out := make([]string, 0, 1+len(defaults)+len(custom))
	out = append(out, AllSources)
	out = append(out, defaults...)
	return append(out, custom...)
}
