package history

import (
	"sort"
	"time"

	"github.com/WessleyAI/medrag/engine/domain"
)

// RankOptions are the tunable ranking constants of recall.
type RankOptions struct {
	// ChronicBoost is added to the similarity of chronic entries.
	ChronicBoost float64
	// RecentDays is the window in which entries carry no age penalty.
	RecentDays int
	// DecayPerDay is the penalty per day of age beyond RecentDays.
	DecayPerDay float64
	// MaxDecay caps the age penalty.
	MaxDecay float64
}

// DefaultRankOptions returns the defaults used by the API server.
func DefaultRankOptions() RankOptions {
	return RankOptions{
		ChronicBoost: 0.15,
		RecentDays:   180,
		DecayPerDay:  0.0005,
		MaxDecay:     0.3,
	}
}

// AgePenalty returns the score penalty for an entry dated date at time now.
// Undated entries and entries inside the recent window are not penalised.
func (o RankOptions) AgePenalty(date, now time.Time) float64 {
	if date.IsZero() || o.DecayPerDay <= 0 {
		return 0
	}
	ageDays := now.Sub(date).Hours() / 24
	over := ageDays - float64(o.RecentDays)
	if over <= 0 {
		return 0
	}
	p := over * o.DecayPerDay
	if o.MaxDecay > 0 && p > o.MaxDecay {
		p = o.MaxDecay
	}
	return p
}

// Rank merges the tagged hits of both recall passes into the final ordering.
//
// Hits are deduplicated by id; when an entry came back from both passes it
// keeps the higher similarity and the similarity tag. Each hit's Rank is its
// similarity plus the chronic boost minus the age penalty. The result is
// sorted by Rank descending (stable, so equal ranks keep pass order) and cut
// to topK, reserving room for chronic entries first so every chronic entry
// surfaces whenever topK allows.
func Rank(tagged []domain.RetrievalHit, now time.Time, opts RankOptions, topK int) []domain.RetrievalHit {
	if topK <= 0 || len(tagged) == 0 {
		return nil
	}

	merged := make([]domain.RetrievalHit, 0, len(tagged))
	pos := make(map[string]int, len(tagged))
	for _, h := range tagged {
		i, seen := pos[h.ID]
		if !seen {
			pos[h.ID] = len(merged)
			merged = append(merged, h)
			continue
		}
		m := &merged[i]
		if h.Score > m.Score {
			m.Score = h.Score
		}
		if h.Provenance == domain.ProvenanceSimilarity {
			m.Provenance = domain.ProvenanceSimilarity
		}
		if h.Metadata.IsChronic {
			m.Metadata.IsChronic = true
		}
	}

	for i := range merged {
		h := &merged[i]
		h.Rank = h.Score - opts.AgePenalty(h.Metadata.Date, now)
		if h.Metadata.IsChronic {
			h.Rank += opts.ChronicBoost
		}
	}
	sortByRank(merged)

	if len(merged) <= topK {
		return merged
	}

	var chronic, other []domain.RetrievalHit
	for _, h := range merged {
		if h.Metadata.IsChronic {
			chronic = append(chronic, h)
		} else {
			other = append(other, h)
		}
	}
	if len(chronic) >= topK {
		return chronic[:topK]
	}
	out := append(chronic, other[:topK-len(chronic)]...)
	sortByRank(out)
	return out
}

func sortByRank(hits []domain.RetrievalHit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Rank > hits[j].Rank })
}
