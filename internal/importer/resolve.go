package importer

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
)

var (
	parenthetical = regexp.MustCompile(`[\(（][^\)）]*[\)）]`)
	shareClass    = regexp.MustCompile(`[A-Ha-h]$`)
)

// maxSearchKeyLen bounds the search keyword to the leading characters of a
// fund name, which carry the distinguishing part.
const maxSearchKeyLen = 6

// CleanName reduces an OCR-recognized fund name to a search keyword:
// parentheticals and the trailing share-class letter (A/B/C/...) are
// stripped, and the remainder is truncated.
func CleanName(name string) string {
	name = parenthetical.ReplaceAllString(name, "")
	name = shareClass.ReplaceAllString(strings.TrimSpace(name), "")
	runes := []rune(name)
	if len(runes) > maxSearchKeyLen {
		runes = runes[:maxSearchKeyLen]
	}
	return strings.TrimSpace(string(runes))
}

// Searcher resolves a name query to fund candidates.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// ResolveCodes validates and corrects OCR-recognized fund codes by searching
// for each fund's cleaned name. The best search match overrides the OCR code;
// when search fails or returns nothing, the OCR code is kept as-is. Funds
// whose code cannot be established as 6 digits are dropped.
func ResolveCodes(ctx context.Context, searcher Searcher, funds []models.RecognizedFund, log *zap.SugaredLogger) []models.RecognizedFund {
	resolved := make([]models.RecognizedFund, 0, len(funds))
	for _, fund := range funds {
		key := CleanName(fund.Name)
		if key != "" {
			results, err := searcher.Search(ctx, key)
			switch {
			case err != nil:
				log.Warnw("code resolution search failed, keeping recognized code",
					"name", fund.Name, "code", fund.Code, "error", err)
			case len(results) > 0:
				if results[0].Code != fund.Code {
					log.Infow("corrected recognized fund code",
						"name", fund.Name, "recognized", fund.Code, "resolved", results[0].Code)
				}
				fund.Code = results[0].Code
			}
		}

		if !models.ValidCode(fund.Code) {
			log.Warnw("dropping recognized fund without a resolvable code", "name", fund.Name)
			continue
		}
		resolved = append(resolved, fund)
	}
	return resolved
}
