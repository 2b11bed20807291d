package engine

import (
	"time"

	"github.com/ppiankov/socialspy/internal/record"
	"github.com/ppiankov/socialspy/internal/source"
)

// PlatformStatus summarizes every fetch made against one platform.
// Succeeded means all targets succeeded; Usable means at least one did.
type PlatformStatus struct {
	Succeeded   bool             `json:"succeeded"`
	Usable      bool             `json:"usable"`
	ErrorKind   source.ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	Targets     int              `json:"targets"`
	Failed      int              `json:"failed_targets"`
	Pages       int              `json:"pages"`
	Kept        int              `json:"kept"`
}

// RunReport is the result of one query or competitor run.
type RunReport struct {
	RunID             string                             `json:"run_id"`
	Mode              record.Mode                        `json:"mode"`
	Keyword           string                             `json:"keyword,omitempty"`
	TimeWindow        record.TimeWindow                  `json:"time_window"`
	MinViewThreshold  int64                              `json:"min_view_threshold"`
	Records           []record.ContentRecord             `json:"records"`
	PerPlatformStatus map[record.Platform]PlatformStatus `json:"per_platform_status"`
	TotalFetched      int                                `json:"total_fetched"`
	TotalAfterFilter  int                                `json:"total_after_filter"`
	TotalMalformed    int                                `json:"total_malformed"`
	State             State                              `json:"state"`
	StartedAt         time.Time                          `json:"started_at"`
	FinishedAt        time.Time                          `json:"finished_at"`
}

// Usable reports whether at least one platform produced a successful fetch.
func (r *RunReport) Usable() bool {
	if r == nil {
		return false
	}
	for _, s := range r.PerPlatformStatus {
		if s.Usable {
			return true
		}
	}
	return false
}

// Platforms returns the platforms present in PerPlatformStatus in canonical
// order.
func (r *RunReport) Platforms() []record.Platform {
	if r == nil {
		return nil
	}
	var out []record.Platform
	for _, p := range record.AllPlatforms {
		if _, ok := r.PerPlatformStatus[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Failed reports whether any platform had a failed target.
func (r *RunReport) Failed() bool {
	if r == nil {
		return false
	}
	for _, s := range r.PerPlatformStatus {
		if !s.Succeeded {
			return true
		}
	}
	return false
}

func summarize(targets []record.PlatformTarget, outcomes []source.FetchOutcome, report *RunReport) map[record.Platform]PlatformStatus {
	status := make(map[record.Platform]PlatformStatus)
	for _, t := range targets {
		if _, ok := status[t.Platform]; !ok {
			status[t.Platform] = PlatformStatus{Succeeded: true}
		}
	}

	for _, o := range outcomes {
		s := status[o.Platform]
		s.Targets++
		s.Pages += o.Pages
		if o.Succeeded {
			s.Usable = true
		} else {
			s.Succeeded = false
			s.Failed++
			if s.ErrorDetail == "" {
				s.ErrorKind = o.ErrorKind
				s.ErrorDetail = o.Target.String() + ": " + o.ErrorDetail
			}
		}
		status[o.Platform] = s
	}

	for _, r := range report.Records {
		s := status[r.Platform]
		s.Kept++
		status[r.Platform] = s
	}
	return status
}
