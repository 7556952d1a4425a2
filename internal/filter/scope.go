package filter

import "strings"

// profileKeywords flag prompts that cannot be answered from financial columns
// alone and need profile-based post-filtering of the result set.
var profileKeywords = []string{
	"summary", "sammanfattning", "website", "hemsida", "products", "produkter",
	"customers", "kunder", "business model", "affarsmodell", "fit score",
	"risk", "niche", "nisch",
}

// DetectScope decides once per compile call whether the query is satisfied by
// financial predicates alone or also needs enriched profiles.
func DetectScope(prompt string) Scope {
	text := Fold(prompt)
	for _, kw := range profileKeywords {
		if strings.Contains(text, kw) {
			return ScopeFinancialPlusProfile
		}
	}
	return ScopeFinancialOnly
}
