package judge

import "strings"

// DefaultLanguageID is Python 3, used for unknown languages.
const DefaultLanguageID = 71

var languageIDs = map[string]int{
	"c":          50,
	"cpp":        54,
	"c++":        54,
	"csharp":     51,
	"c#":         51,
	"go":         60,
	"golang":     60,
	"java":       62,
	"javascript": 63,
	"js":         63,
	"kotlin":     78,
	"php":        68,
	"python":     71,
	"python3":    71,
	"ruby":       72,
	"rust":       73,
	"swift":      83,
	"typescript": 74,
	"ts":         74,
}

// LanguageID resolves a language name to its Judge0 id.
func LanguageID(language string) int {
	if id, ok := languageIDs[strings.ToLower(strings.TrimSpace(language))]; ok {
		return id
	}
	return DefaultLanguageID
}

// Supported reports whether language has an explicit mapping.
func Supported(language string) bool {
	_, ok := languageIDs[strings.ToLower(strings.TrimSpace(language))]
	return ok
}
