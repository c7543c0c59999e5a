package stubbackend

import "testing"

func TestRecommend(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantFirst string
	}{
		{"default query falls back to catalog order", "Recommend me some good anime", catalog[0].Title},
		{"title wins", `I want anime with title "Monster"`, "Monster"},
		{"theme match", "I want themes: Time Travel", "Steins;Gate"},
		{"episode count breaks a genre tie", "I want genres: Action with 220 episodes", "Naruto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(tt.query)
			if len(got) == 0 || len(got) > MaxRecommendations {
				t.Fatalf("len = %d", len(got))
			}
			if got[0].Title != tt.wantFirst {
				t.Errorf("first = %q, want %q", got[0].Title, tt.wantFirst)
			}
			for _, a := range got {
				if len(a.Tags) != 0 {
					t.Errorf("%s leaked matching tags", a.Title)
				}
			}
		})
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(" naruto "); !ok {
		t.Error("Lookup is not case-insensitive")
	}
	if _, ok := Lookup("Nonexistent"); ok {
		t.Error("Lookup found a missing title")
	}
}
