package services

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"offmall_watcher/models"
	"offmall_watcher/storage"
)

const maxCandidates = 3

var (
	// Every common East-Asian and Latin bracket variant seen in listing names.
	bracketRe = regexp.MustCompile(`[\[\]【】（）()「」『』]`)

	// Condition and shipping phrases that carry no search signal.
	keywordNoiseRe = regexp.MustCompile(`ジャンク品?|ランク[A-Z]|中古|未開封|新品|送料無料`)

	// Tokens that are just a number or a price.
	numericTokenRe = regexp.MustCompile(`^[\d,]+円?$`)
)

// KeywordService derives search keywords from the names of fast-selling items.
type KeywordService struct{}

func NewKeywordService() *KeywordService {
	return &KeywordService{}
}

// Rank splits a listing name into candidate keywords, longest first, at most
// three. Brackets become separators, noise phrases are dropped outright, and
// purely numeric tokens never qualify.
func (s *KeywordService) Rank(name string) []string {
	cleaned := bracketRe.ReplaceAllString(name, " ")
	cleaned = keywordNoiseRe.ReplaceAllString(cleaned, "")

	var candidates []string
	for _, token := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(token) >= 2 && !numericTokenRe.MatchString(token) {
			candidates = append(candidates, token)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return utf8.RuneCountInString(candidates[i]) > utf8.RuneCountInString(candidates[j])
	})

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

// ExtractAndStore persists the single strongest candidate from a fast-selling
// listing, with provenance copied from the listing. A text that already
// exists is dropped silently: the first fast sale owns the keyword.
func (s *KeywordService) ExtractAndStore(ctx context.Context, tx storage.Tx, listing *models.Listing) error {
	candidates := s.Rank(listing.Name)
	if len(candidates) == 0 {
		return nil
	}

	text := candidates[0]
	exists, err := tx.KeywordExists(ctx, text)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return tx.InsertKeyword(ctx, &models.Keyword{
		Text:              text,
		Selected:          true,
		SourceListingName: listing.Name,
		SourcePrice:       listing.Price,
		MinutesToSell:     listing.MinutesToSell,
		CreatedAt:         time.Now(),
	})
}
