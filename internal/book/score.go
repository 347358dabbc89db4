package book

import (
	"sort"
	"time"
)

// ComputeScore returns the popularity score of a book at the given time:
// half a point per view plus two points per year since publication. A
// publication year in the future contributes negatively; that is accepted.
func ComputeScore(b Book, now time.Time) float64 {
	yearsSincePublished := now.UTC().Year() - b.PublicationYear
	return float64(b.BookViews)*0.5 + float64(yearsSincePublished)*2
}

// Rank filters out soft-deleted books, orders the rest by descending
// popularity score and returns the page at offset (pageNumber-1)*pageSize.
// Equal scores order by creation time, then id, so pages are stable for a
// fixed snapshot. pageNumber and pageSize must be positive.
func Rank(books []Book, pageNumber, pageSize int, now time.Time) []Scored {
	ranked := make([]Scored, 0, len(books))
	for _, b := range books {
		if b.IsDeleted {
			continue
		}
		ranked = append(ranked, Scored{Book: b, PopularityScore: ComputeScore(b, now)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].PopularityScore != ranked[j].PopularityScore {
			return ranked[i].PopularityScore > ranked[j].PopularityScore
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) == 0 {
		return nil
	}
	// Bound the page number by division before multiplying, so huge page
	// numbers cannot overflow the offset into a negative slice index.
	lastPage := (len(ranked)-1)/pageSize + 1
	if pageNumber > lastPage {
		return nil
	}
	offset := (pageNumber - 1) * pageSize
	end := offset + pageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}
