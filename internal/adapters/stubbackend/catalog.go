package stubbackend

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"animeai/internal/domain/anime"
)

// MaxRecommendations is how many records one recommendation reply carries.
const MaxRecommendations = 5

// entry is one catalog title with the tags used for matching.
type entry struct {
	anime.Anime
	episodes int
}

// catalog is the stub's fixed recommendation corpus.
var catalog = []entry{
	{Anime: anime.Anime{Title: "Fullmetal Alchemist: Brotherhood", Genre: "Action", Reason: "Two brothers pay the price of alchemy. Tight plotting and a **complete** ending.", Tags: []string{"action", "adventure", "fantasy", "drama", "military"}}, episodes: 64},
	{Anime: anime.Anime{Title: "Naruto", Genre: "Action", Reason: "A loud ninja kid chases recognition. Long-running *shonen* with a big cast.", Tags: []string{"action", "adventure", "martial arts", "comedy"}}, episodes: 220},
	{Anime: anime.Anime{Title: "Steins;Gate", Genre: "Sci-Fi", Reason: "A microwave that texts the past. Slow start, **huge** payoff.", Tags: []string{"sci-fi", "thriller", "time travel", "psychological", "drama"}}, episodes: 24},
	{Anime: anime.Anime{Title: "Haikyu!!", Genre: "Sports", Reason: "Volleyball told with real momentum and a team you root for.", Tags: []string{"sports", "comedy", "school", "drama"}}, episodes: 85},
	{Anime: anime.Anime{Title: "Mushishi", Genre: "Mystery", Reason: "Quiet episodic folklore. Best watched one episode at a time.", Tags: []string{"mystery", "supernatural", "slice of life", "historical", "fantasy"}}, episodes: 46},
	{Anime: anime.Anime{Title: "Neon Genesis Evangelion", Genre: "Mecha", Reason: "Giant robots as a lens on *depression* and family.", Tags: []string{"mecha", "psychological", "drama", "sci-fi", "action"}}, episodes: 26},
	{Anime: anime.Anime{Title: "Cowboy Bebop", Genre: "Sci-Fi", Reason: "Bounty hunters, jazz, and one of the best soundtracks around.", Tags: []string{"sci-fi", "space", "action", "music", "drama"}}, episodes: 26},
	{Anime: anime.Anime{Title: "Re:Zero", Genre: "Fantasy", Reason: "An isekai where dying resets the day, and it hurts every time.", Tags: []string{"fantasy", "isekai", "psychological", "thriller", "drama", "time travel"}}, episodes: 50},
	{Anime: anime.Anime{Title: "Your Lie in April", Genre: "Drama", Reason: "A pianist relearns music. Bring tissues.", Tags: []string{"drama", "romance", "music", "school"}}, episodes: 22},
	{Anime: anime.Anime{Title: "Attack on Titan", Genre: "Action", Reason: "Walls, titans, and a plot that keeps flipping what you know.", Tags: []string{"action", "drama", "military", "gore", "mystery", "horror"}}, episodes: 87},
	{Anime: anime.Anime{Title: "Kaguya-sama: Love Is War", Genre: "Comedy", Reason: "Two geniuses refuse to confess first. Sharp *romantic* comedy.", Tags: []string{"comedy", "romance", "school", "psychological"}}, episodes: 37},
	{Anime: anime.Anime{Title: "Rurouni Kenshin", Genre: "Action", Reason: "A wandering swordsman who vowed never to kill again.", Tags: []string{"action", "samurai", "historical", "martial arts", "romance"}}, episodes: 94},
	{Anime: anime.Anime{Title: "Made in Abyss", Genre: "Adventure", Reason: "A cute art style over a **brutal** descent.", Tags: []string{"adventure", "fantasy", "mystery", "horror", "gore"}}, episodes: 25},
	{Anime: anime.Anime{Title: "Yuru Camp", Genre: "Slice of Life", Reason: "Camping, hot food, and nothing bad ever happens.", Tags: []string{"slice of life", "comedy", "school"}}, episodes: 24},
	{Anime: anime.Anime{Title: "Mobile Suit Gundam: The Witch from Mercury", Genre: "Mecha", Reason: "A school duel setup that turns into corporate war.", Tags: []string{"mecha", "school", "space", "drama", "sci-fi", "military"}}, episodes: 24},
	{Anime: anime.Anime{Title: "Monster", Genre: "Thriller", Reason: "A surgeon hunts the killer he once saved. Patient and chilling.", Tags: []string{"thriller", "mystery", "psychological", "drama", "horror"}}, episodes: 74},
}

var episodesPattern = regexp.MustCompile(`(\d+)\s+episodes`)

type scored struct {
	entry
	score int
	index int
}

// Recommend picks up to MaxRecommendations titles for a free-text query.
// Titles, tags and an episode count in the query all add to a title's score.
// PRE: none
// POST: returns titles ordered by score, catalog order breaking ties; when
// nothing matches, the first titles of the catalog are returned
func Recommend(q string) []anime.Anime {
	lower := strings.ToLower(q)
	wantEpisodes := 0
	if m := episodesPattern.FindStringSubmatch(lower); m != nil {
		wantEpisodes, _ = strconv.Atoi(m[1])
	}

	var hits []scored
	for i, e := range catalog {
		s := 0
		if strings.Contains(lower, strings.ToLower(e.Title)) {
			s += 5
		}
		for _, tag := range e.Tags {
			if strings.Contains(lower, tag) {
				s += 2
			}
		}
		if wantEpisodes > 0 && withinQuarter(e.episodes, wantEpisodes) {
			s++
		}
		if s > 0 {
			hits = append(hits, scored{entry: e, score: s, index: i})
		}
	}

	if len(hits) == 0 {
		for i, e := range catalog {
			if i == MaxRecommendations {
				break
			}
			hits = append(hits, scored{entry: e, index: i})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].index < hits[j].index
	})
	if len(hits) > MaxRecommendations {
		hits = hits[:MaxRecommendations]
	}

	out := make([]anime.Anime, 0, len(hits))
	for _, h := range hits {
		a := h.Anime
		a.Tags = nil
		out = append(out, a)
	}
	return out
}

func withinQuarter(have, want int) bool {
	diff := have - want
	if diff < 0 {
		diff = -diff
	}
	return diff*4 <= want
}

// Lookup finds a catalog title, case-insensitively.
func Lookup(title string) (anime.Anime, bool) {
	for _, e := range catalog {
		if strings.EqualFold(e.Title, strings.TrimSpace(title)) {
			return e.Anime, true
		}
	}
	return anime.Anime{}, false
}
