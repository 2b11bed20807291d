package record

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects what an aggregation run does.
type Mode string

const (
	ModeQuery      Mode = "query"
	ModeCompetitor Mode = "competitor"
	ModeSpy        Mode = "spy"
)

// DefaultMinViewThreshold is the popularity floor applied when a caller
// does not override it.
const DefaultMinViewThreshold int64 = 2000

// QuerySpec describes one aggregation request.
//
// In ModeQuery Keyword is the search term. In ModeCompetitor Accounts maps
// each platform to the handles to monitor. In ModeSpy Keyword carries the
// username to probe and the remaining fields are ignored.
type QuerySpec struct {
	Mode             Mode
	Keyword          string
	Accounts         map[Platform][]string
	TimeWindow       TimeWindow
	Platforms        []Platform
	MinViewThreshold int64
}

// NewKeywordQuery builds a query-mode spec with default threshold, window
// and platform set.
func NewKeywordQuery(keyword string) QuerySpec {
	return QuerySpec{
		Mode:             ModeQuery,
		Keyword:          keyword,
		TimeWindow:       AllTime,
		Platforms:        append([]Platform(nil), AllPlatforms...),
		MinViewThreshold: DefaultMinViewThreshold,
	}
}

// NewCompetitorQuery builds a competitor-mode spec over the platforms that
// have at least one handle.
func NewCompetitorQuery(accounts map[Platform][]string) QuerySpec {
	spec := QuerySpec{
		Mode:             ModeCompetitor,
		Accounts:         accounts,
		TimeWindow:       AllTime,
		MinViewThreshold: DefaultMinViewThreshold,
	}
	for _, p := range AllPlatforms {
		if len(accounts[p]) > 0 {
			spec.Platforms = append(spec.Platforms, p)
		}
	}
	return spec
}

// NewSpyQuery builds a username-spy spec.
func NewSpyQuery(username string) QuerySpec {
	return QuerySpec{Mode: ModeSpy, Keyword: username}
}

// Validate checks the mode-specific rules of s.
func (s QuerySpec) Validate() error {
	switch s.Mode {
	case ModeQuery:
		if strings.TrimSpace(s.Keyword) == "" {
			return errors.New("query mode requires a keyword")
		}
		if len(s.Accounts) > 0 {
			return errors.New("query mode does not accept accounts")
		}
	case ModeCompetitor:
		if s.Keyword != "" {
			return errors.New("competitor mode does not accept a keyword")
		}
		if countHandles(s.Accounts) == 0 {
			return errors.New("competitor mode requires at least one account")
		}
	case ModeSpy:
		if strings.TrimSpace(s.Keyword) == "" {
			return errors.New("spy mode requires a username")
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	if len(s.Platforms) == 0 {
		return errors.New("at least one platform is required")
	}
	for _, p := range s.Platforms {
		if !p.Valid() {
			return fmt.Errorf("unknown platform %q", p)
		}
	}
	if !s.TimeWindow.Valid() {
		return fmt.Errorf("unknown time window %q", s.TimeWindow)
	}
	if s.MinViewThreshold < 0 {
		return fmt.Errorf("min view threshold must be >= 0, got %d", s.MinViewThreshold)
	}
	return nil
}

// Targets expands s into the ordered per-platform fetch targets. Platforms
// follow canonical order; handles keep their configured order.
func (s QuerySpec) Targets() []PlatformTarget {
	enabled := make(map[Platform]bool, len(s.Platforms))
	for _, p := range s.Platforms {
		enabled[p] = true
	}

	var out []PlatformTarget
	for _, p := range AllPlatforms {
		if !enabled[p] {
			continue
		}
		switch s.Mode {
		case ModeQuery:
			out = append(out, PlatformTarget{Platform: p, Target: Target{Kind: TargetKeyword, Value: strings.TrimSpace(s.Keyword)}})
		case ModeCompetitor:
			for _, handle := range s.Accounts[p] {
				handle = NormalizeHandle(handle)
				if handle == "" {
					continue
				}
				out = append(out, PlatformTarget{Platform: p, Target: Target{Kind: TargetAccount, Value: handle}})
			}
		}
	}
	return out
}

// TargetKind distinguishes keyword searches from account listings.
type TargetKind string

const (
	TargetKeyword TargetKind = "keyword"
	TargetAccount TargetKind = "account"
)

// Target is what a platform client is asked to fetch.
type Target struct {
	Kind  TargetKind `json:"kind"`
	Value string     `json:"value"`
}

func (t Target) String() string {
	if t.Kind == TargetAccount {
		return "@" + t.Value
	}
	return fmt.Sprintf("%q", t.Value)
}

// PlatformTarget binds a target to the platform that serves it.
type PlatformTarget struct {
	Platform Platform
	Target   Target
}

// NormalizeHandle trims whitespace and a leading "@".
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

func countHandles(accounts map[Platform][]string) int {
	n := 0
	for _, handles := range accounts {
		for _, h := range handles {
			if NormalizeHandle(h) != "" {
				n++
			}
		}
	}
	return n
}
