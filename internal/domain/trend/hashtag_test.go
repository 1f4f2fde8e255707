package trend

import (
	"slices"
	"testing"
)

func TestHashtag(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "words and digits", title: "Trending Topic 1", want: "#trending_topic_1"},
		{name: "apostrophe and punctuation", title: "It's Cool!", want: "#its_cool"},
		{name: "only punctuation", title: "!!!", want: ""},
		{name: "empty", title: "", want: ""},
		{name: "hyphen kept", title: "Spider-Man: No Way Home", want: "#spider-man_no_way_home"},
		{name: "repeated separators collapse", title: "a  --- b", want: "#a_---_b"},
		{name: "leading and trailing junk", title: "  ...Go 1.26 released...  ", want: "#go_1_26_released"},
		{name: "unicode letters", title: "Café Société", want: "#café_société"},
		{name: "decomposed accent normalised", title: "Cafe\u0301", want: "#caf\u00e9"},
		{name: "non latin", title: "東京 オリンピック", want: "#東京_オリンピック"},
		{name: "underscores collapse", title: "a__b", want: "#a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hashtag(tt.title); got != tt.want {
				t.Errorf("Hashtag(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestHashtagsDropsEmpty(t *testing.T) {
	got := Hashtags([]string{"Trending Topic 1", "   ", "!!!", "It's Cool!"})
	want := []string{"#trending_topic_1", "#its_cool"}
	if !slices.Equal(got, want) {
		t.Fatalf("Hashtags() = %#v, want %#v", got, want)
	}
}

func TestHashtagsEmptyInput(t *testing.T) {
	got := Hashtags(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("Hashtags(nil) = %#v, want empty non-nil slice", got)
	}
}
