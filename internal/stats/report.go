package stats

import (
	"context"

	"github.com/verte-zerg/cpsclick/internal/model"
	"github.com/verte-zerg/cpsclick/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions []model.SessionAggregate
	// Latest is the most recent session in Sessions, nil when empty.
	Latest        *model.SessionAggregate
	LatestSamples []model.RateSample
	Metrics       SessionMetrics
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, filter model.HistoryFilter) (Report, error) {
	sessions, err := st.ListSessions(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	if filter.Last > 0 && len(sessions) > filter.Last {
		sessions = sessions[len(sessions)-filter.Last:]
	}
	report := Report{Sessions: sessions, Metrics: Metrics(sessions)}
	if len(sessions) == 0 {
		return report, nil
	}
	latest := sessions[len(sessions)-1]
	report.Latest = &latest
	report.LatestSamples, err = st.ListSamples(ctx, latest.SessionID)
	if err != nil {
		return Report{}, err
	}
	return report, nil
}
