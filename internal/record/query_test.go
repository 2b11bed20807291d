package record

import (
	"strings"
	"testing"
	"time"
)

func TestQuerySpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    QuerySpec
		wantErr string
	}{
		{"keyword ok", NewKeywordQuery("test"), ""},
		{"keyword blank", NewKeywordQuery("  "), "requires a keyword"},
		{
			"keyword with accounts",
			func() QuerySpec {
				s := NewKeywordQuery("test")
				s.Accounts = map[Platform][]string{TikTok: {"a"}}
				return s
			}(),
			"does not accept accounts",
		},
		{"competitor ok", NewCompetitorQuery(map[Platform][]string{Instagram: {"natgeo"}}), ""},
		{"competitor empty", NewCompetitorQuery(map[Platform][]string{TikTok: {" ", "@"}}), "at least one account"},
		{
			"no platforms",
			func() QuerySpec {
				s := NewKeywordQuery("test")
				s.Platforms = nil
				return s
			}(),
			"at least one platform",
		},
		{
			"negative threshold",
			func() QuerySpec {
				s := NewKeywordQuery("test")
				s.MinViewThreshold = -1
				return s
			}(),
			"must be >= 0",
		},
		{"spy ok", NewSpyQuery("johndoe"), ""},
		{"spy blank", NewSpyQuery(""), "requires a username"},
		{"unknown mode", QuerySpec{Mode: "bogus"}, "unknown mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewKeywordQueryDefaults(t *testing.T) {
	s := NewKeywordQuery("test")
	if s.MinViewThreshold != 2000 {
		t.Errorf("threshold = %d, want 2000", s.MinViewThreshold)
	}
	if len(s.Platforms) != 3 {
		t.Errorf("platforms = %v, want all", s.Platforms)
	}
	if s.TimeWindow != AllTime {
		t.Errorf("window = %q", s.TimeWindow)
	}
}

func TestTargetsOrder(t *testing.T) {
	s := NewCompetitorQuery(map[Platform][]string{
		TikTok:    {"@chef", "baker"},
		YouTube:   {"UCabc"},
		Instagram: {""},
	})

	got := s.Targets()
	want := []PlatformTarget{
		{YouTube, Target{TargetAccount, "UCabc"}},
		{TikTok, Target{TargetAccount, "chef"}},
		{TikTok, Target{TargetAccount, "baker"}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d targets, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("target[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	kw := NewKeywordQuery(" cats ")
	kw.Platforms = []Platform{TikTok, YouTube}
	got = kw.Targets()
	if len(got) != 2 || got[0].Platform != YouTube || got[1].Platform != TikTok {
		t.Fatalf("keyword targets = %v", got)
	}
	if got[0].Target.Value != "cats" || got[0].Target.Kind != TargetKeyword {
		t.Fatalf("keyword target = %v", got[0].Target)
	}
}

func TestTimeWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in    string
		want  TimeWindow
		cut   time.Time
		label string
	}{
		{"24h", Last24h, now.Add(-24 * time.Hour), "Last 24 hours"},
		{"7d", Last7d, now.AddDate(0, 0, -7), "Last 7 days"},
		{"month", Last30d, now.AddDate(0, 0, -30), "Last 30 days"},
		{"all", AllTime, time.Time{}, "All time"},
	}

	for _, tt := range tests {
		w, err := ParseTimeWindow(tt.in)
		if err != nil {
			t.Fatalf("ParseTimeWindow(%q): %v", tt.in, err)
		}
		if w != tt.want {
			t.Errorf("ParseTimeWindow(%q) = %q, want %q", tt.in, w, tt.want)
		}
		cut, bounded := w.Cutoff(now)
		if bounded != !tt.cut.IsZero() || !cut.Equal(tt.cut) {
			t.Errorf("%s cutoff = %v (%v), want %v", w, cut, bounded, tt.cut)
		}
		if w.Label() != tt.label {
			t.Errorf("%s label = %q", w, w.Label())
		}
	}

	if _, err := ParseTimeWindow("1y"); err == nil {
		t.Fatal("expected error for unknown window")
	}
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" YouTube ")
	if err != nil || p != YouTube {
		t.Fatalf("ParsePlatform = %q, %v", p, err)
	}
	if _, err := ParsePlatform("myspace"); err == nil {
		t.Fatal("expected error")
	}
	if YouTube.Rank() >= Instagram.Rank() || Instagram.Rank() >= TikTok.Rank() {
		t.Fatal("canonical order must be youtube, instagram, tiktok")
	}
}
