package capture

import (
	"time"

	"github.com/hazyhaar/sitecap/capture/internal/artifact"
	"github.com/hazyhaar/sitecap/capture/internal/netcap"
)

// Cookie is one target-domain cookie in a Report.
type Cookie = artifact.Cookie

// Report is the outcome of one capture run.
type Report struct {
	RunID      string    `json:"runId"`
	Timestamp  time.Time `json:"timestamp"`
	Cookies    []Cookie  `json:"cookies"`
	Token      *string   `json:"requestVerificationToken"`
	Seen       bool      `json:"imageDemoResponseSeen"`
	Summary    *Summary  `json:"imageDemoResponseSummary"`
	Strategy   string    `json:"strategy"`
	DurationMs int64     `json:"durationMs"`
}

// Summary describes the captured response without its body.
type Summary struct {
	URL        string   `json:"url"`
	Status     int      `json:"status"`
	HeaderKeys []string `json:"headerKeys"`
}

// Health is the liveness payload.
type Health struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
	Host      string    `json:"host"`
}

func summarize(r *netcap.Result) *Summary {
	if r == nil {
		return nil
	}
	return &Summary{URL: r.URL, Status: r.Status, HeaderKeys: r.HeaderKeys()}
}
