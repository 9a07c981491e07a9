package models

// MoodSuggestions are the quick mood picks offered on an empty search page.
var MoodSuggestions = []string{
	"Cozy coffee date vibes",
	"Romantic dinner for two",
	"Celebration with friends",
	"Authentic local flavors",
}

// ExampleSearches are full example queries shown under the search box.
var ExampleSearches = []string{
	"Best rooftop places in Koramangala with cocktails",
	"Peaceful South Indian breakfast spot near MG Road",
	"Aesthetic restaurants with good lighting for photos",
	"Cozy cafe with great coffee in Indiranagar",
}

// Suggestions returns mood picks followed by example searches.
func Suggestions() []string {
	out := make([]string, 0, len(MoodSuggestions)+len(ExampleSearches))
	out = append(out, MoodSuggestions...)
	return append(out, ExampleSearches...)
}
