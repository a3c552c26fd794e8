package core

import (
	"math/rand"
	"time"

	"collectioncore/pkg/domain"
)

// Retention windows for auto-computed destruction dates. Regulatory
// retention differs by biosafety classification; the random offset within a
// window avoids synchronized bulk-destruction scheduling.
const (
	s2DestructionOffset = 2 * 24 * time.Hour

	episomalRetentionMinDays = 7
	episomalRetentionMaxDays = 28

	pureStockRetentionMinDays = 7
	pureStockRetentionMaxDays = 21
)

// Jitter picks random day offsets for destruction dates. The default source
// is math/rand; tests inject a deterministic one.
type Jitter interface {
	DaysBetween(min, max int) int
}

type randJitter struct {
	rng *rand.Rand
}

// NewJitter returns a jitter backed by its own seeded generator.
func NewJitter() Jitter {
	return randJitter{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (j randJitter) DaysBetween(min, max int) int {
	return min + j.rng.Intn(max-min+1)
}

// computeEpisomalDestruction fills in the destruction date of an episomal
// plasmid linkage when none is set and a creation date is present. S2 work
// gets exactly two days; everything else a random offset within the
// retention window. Idempotent once the date is set.
func computeEpisomalDestruction(link *domain.EpisomalPlasmidLink, jitter Jitter) {
	if link.DestroyedDate != nil || link.CreatedDate == nil {
		return
	}
	var d time.Time
	if link.S2Work {
		d = link.CreatedDate.Add(s2DestructionOffset)
	} else {
		days := jitter.DaysBetween(episomalRetentionMinDays, episomalRetentionMaxDays)
		d = link.CreatedDate.AddDate(0, 0, days)
	}
	link.DestroyedDate = &d
}

// computePureStockDestruction returns the destruction date for a plasmid
// kept only as a pure stock, measured from now rather than from creation.
func computePureStockDestruction(now time.Time, jitter Jitter) time.Time {
	days := jitter.DaysBetween(pureStockRetentionMinDays, pureStockRetentionMaxDays)
	return now.AddDate(0, 0, days)
}
