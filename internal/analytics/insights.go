package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/campus-events/backend/internal/authz"
)

const (
	day               = 24 * time.Hour
	cancelAlertCount  = 3
	spikeFactor       = 2.0
	editAlertCount    = 5
	bottleneckFactor  = 3.0
	predictUserFactor = 1.1
	predictEventRatio = 1.15
)

// Severity ranks a risk alert.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	}
	return 1
}

// ClubCount is a per-club tally.
type ClubCount struct {
	ClubID   uuid.UUID `json:"club_id"`
	ClubName string    `json:"club_name"`
	Count    int       `json:"count"`
}

// RiskSignals are the raw inputs to the risk panel.
type RiskSignals struct {
	Cancellations  []ClubCount
	PublishedEdits int
}

// Created counts rows created inside a window.
type Created struct {
	Users  int `json:"new_users"`
	Clubs  int `json:"new_clubs"`
	Events int `json:"new_events"`
}

// ClubWorkload is one club's publishing in the approvals window.
type ClubWorkload struct {
	ClubID      uuid.UUID  `json:"club_id"`
	ClubName    string     `json:"club_name"`
	Email       string     `json:"email"`
	Published   int        `json:"published"`
	Cancelled   int        `json:"cancelled"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Publishing is the raw input to the approvals panel.
type Publishing struct {
	Clubs     []ClubWorkload
	Events    int
	Cancelled int
}

// Alert is one entry of the risk panel.
type Alert struct {
	Type       string      `json:"type"`
	Severity   Severity    `json:"severity"`
	Message    string      `json:"message"`
	Count      int         `json:"count,omitempty"`
	SpikeRatio float64     `json:"spike_ratio,omitempty"`
	Details    []ClubCount `json:"details,omitempty"`
}

// RiskReport is the risk panel.
type RiskReport struct {
	TotalAlerts  int       `json:"total_alerts"`
	HighPriority int       `json:"high_priority_alerts"`
	Alerts       []Alert   `json:"alerts"`
	LastUpdated  time.Time `json:"last_updated"`
}

// GrowthPeriod compares one trailing window with the window before it.
type GrowthPeriod struct {
	Period string `json:"period"`
	Days   int    `json:"days"`
	Created
	UserGrowthRate  float64 `json:"user_growth_rate"`
	ClubGrowthRate  float64 `json:"club_growth_rate"`
	EventGrowthRate float64 `json:"event_growth_rate"`
}

// Semester counts sign-ups and events in a half year.
type Semester struct {
	Name             string  `json:"semester"`
	Year             int     `json:"year"`
	Users            int     `json:"users"`
	Events           int     `json:"events"`
	AvgEventsPerUser float64 `json:"avg_events_per_user"`
}

// Insight is a plain-language reading of the growth numbers.
type Insight struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Impact  string `json:"impact"`
}

// Growth is the growth and trends panel.
type Growth struct {
	Periods     []GrowthPeriod `json:"time_periods"`
	Semesters   []Semester     `json:"semester_trends"`
	Insights    []Insight      `json:"insights"`
	Predictions struct {
		Users  int `json:"predicted_users_30d"`
		Events int `json:"predicted_events_30d"`
	} `json:"predictions"`
}

// Bottleneck is a club publishing far more than the average.
type Bottleneck struct {
	ClubName         string  `json:"club_name"`
	Published        int     `json:"published"`
	WorkloadMultiple float64 `json:"workload_multiple"`
}

// Approvals is the publishing workflow panel. Clubs publish their own events,
// so each club admin is its own approver.
type Approvals struct {
	Period          string         `json:"time_period"`
	TotalClubs      int            `json:"total_clubs"`
	TotalPublished  int            `json:"total_published"`
	TotalCancelled  int            `json:"total_cancelled"`
	ApprovalRatio   float64        `json:"approval_ratio"`
	AvgPerClub      float64        `json:"avg_published_per_club"`
	Workloads       []ClubWorkload `json:"club_workloads"`
	HasBottlenecks  bool           `json:"has_bottlenecks"`
	Bottlenecks     []Bottleneck   `json:"bottlenecks"`
	Recommendations []string       `json:"recommendations"`
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// GrowthRate is the percentage change from prev to cur. Growth from nothing counts as 100%.
func GrowthRate(cur, prev int) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return round2(float64(cur-prev) / float64(prev) * 100)
}

// RiskAlerts flags clubs with repeated cancellations, event creation spikes and
// edits to published events over the last 30 days.
func (s *Service) RiskAlerts(ctx context.Context, actor authz.Identity) (RiskReport, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return RiskReport{}, err
	}
	now := s.now().UTC()
	since := now.Add(-recentWindow)
	sig, err := s.store.RiskSignals(ctx, since)
	if err != nil {
		return RiskReport{}, err
	}
	var alerts []Alert

	var repeated []ClubCount
	for _, c := range sig.Cancellations {
		if c.Count >= cancelAlertCount {
			repeated = append(repeated, c)
		}
	}
	if len(repeated) > 0 {
		alerts = append(alerts, Alert{
			Type:     "REPEATED_CANCELLATIONS",
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("%d clubs have %d+ cancelled events in the last 30 days", len(repeated), cancelAlertCount),
			Count:    len(repeated),
			Details:  repeated,
		})
	}

	today := now.Truncate(day)
	yesterday, err := s.store.Created(ctx, today.Add(-day), today)
	if err != nil {
		return RiskReport{}, err
	}
	window, err := s.store.Created(ctx, since, now)
	if err != nil {
		return RiskReport{}, err
	}
	avg := float64(window.Events) / 30
	if avg > 0 && float64(yesterday.Events) > avg*spikeFactor {
		alerts = append(alerts, Alert{
			Type:       "ACTIVITY_SPIKE",
			Severity:   SeverityMedium,
			Message:    fmt.Sprintf("unusual activity: %d events yesterday (average %.0f)", yesterday.Events, math.Round(avg)),
			Count:      yesterday.Events,
			SpikeRatio: round2(float64(yesterday.Events) / avg),
		})
	}

	if sig.PublishedEdits > editAlertCount {
		alerts = append(alerts, Alert{
			Type:     "POST_PUBLISH_EDITS",
			Severity: SeverityLow,
			Message:  fmt.Sprintf("%d edits were made to published events", sig.PublishedEdits),
			Count:    sig.PublishedEdits,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].Severity.rank() > alerts[j].Severity.rank() })
	r := RiskReport{TotalAlerts: len(alerts), Alerts: alerts, LastUpdated: now}
	if r.Alerts == nil {
		r.Alerts = []Alert{}
	}
	for _, a := range alerts {
		if a.Severity == SeverityHigh {
			r.HighPriority++
		}
	}
	return r, nil
}

var growthWindows = []struct {
	name string
	days int
}{
	{"LAST_7_DAYS", 7},
	{"LAST_30_DAYS", 30},
	{"LAST_90_DAYS", 90},
	{"LAST_365_DAYS", 365},
}

// Growth compares each trailing window with the one before it and splits the
// current year into Spring (Jan to Jun) and Fall (Jul to Dec).
func (s *Service) Growth(ctx context.Context, actor authz.Identity) (Growth, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return Growth{}, err
	}
	now := s.now().UTC()
	var g Growth
	for _, w := range growthWindows {
		span := time.Duration(w.days) * day
		cur, err := s.store.Created(ctx, now.Add(-span), now)
		if err != nil {
			return Growth{}, err
		}
		prev, err := s.store.Created(ctx, now.Add(-2*span), now.Add(-span))
		if err != nil {
			return Growth{}, err
		}
		g.Periods = append(g.Periods, GrowthPeriod{
			Period:          w.name,
			Days:            w.days,
			Created:         cur,
			UserGrowthRate:  GrowthRate(cur.Users, prev.Users),
			ClubGrowthRate:  GrowthRate(cur.Clubs, prev.Clubs),
			EventGrowthRate: GrowthRate(cur.Events, prev.Events),
		})
	}

	year := now.Year()
	jan := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	jul := time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
	for _, sem := range []struct {
		name     string
		from, to time.Time
	}{
		{"Spring", jan, jul},
		{"Fall", jul, jan.AddDate(1, 0, 0)},
	} {
		c, err := s.store.Created(ctx, sem.from, sem.to)
		if err != nil {
			return Growth{}, err
		}
		out := Semester{Name: sem.name, Year: year, Users: c.Users, Events: c.Events}
		if c.Users > 0 {
			out.AvgEventsPerUser = round2(float64(c.Events) / float64(c.Users))
		}
		g.Semesters = append(g.Semesters, out)
	}

	g.Insights = growthInsights(g.Periods)
	month := g.Periods[1]
	g.Predictions.Users = int(math.Round(float64(month.Users) * predictUserFactor))
	g.Predictions.Events = int(math.Round(float64(month.Events) * predictEventRatio))
	return g, nil
}

func growthInsights(p []GrowthPeriod) []Insight {
	out := []Insight{}
	week, month := p[0], p[1]
	if week.Events > 0 && week.Events > week.Users*2 {
		out = append(out, Insight{
			Type:    "EVENT_ACTIVITY",
			Message: "event creation is outpacing sign-ups; existing users are very active",
			Impact:  "POSITIVE",
		})
	}
	if month.Clubs > 0 && month.ClubGrowthRate > 0 {
		out = append(out, Insight{
			Type:    "CLUB_GROWTH",
			Message: fmt.Sprintf("club sign-ups are up %.2f%% on the previous 30 days", month.ClubGrowthRate),
			Impact:  "POSITIVE",
		})
	}
	if month.UserGrowthRate < 0 {
		out = append(out, Insight{
			Type:    "USER_DECLINE",
			Message: fmt.Sprintf("sign-ups are down %.2f%% on the previous 30 days", -month.UserGrowthRate),
			Impact:  "NEGATIVE",
		})
	}
	return out
}

// Approvals reports how publishing is spread across clubs over the last 30 days.
func (s *Service) Approvals(ctx context.Context, actor authz.Identity) (Approvals, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return Approvals{}, err
	}
	p, err := s.store.Publishing(ctx, s.now().UTC().Add(-recentWindow))
	if err != nil {
		return Approvals{}, err
	}
	a := Approvals{
		Period:         "LAST_30_DAYS",
		TotalClubs:     len(p.Clubs),
		TotalCancelled: p.Cancelled,
		Workloads:      p.Clubs,
		Bottlenecks:    []Bottleneck{},
	}
	if a.Workloads == nil {
		a.Workloads = []ClubWorkload{}
	}
	sort.SliceStable(a.Workloads, func(i, j int) bool { return a.Workloads[i].Published > a.Workloads[j].Published })
	for _, c := range a.Workloads {
		a.TotalPublished += c.Published
	}
	if p.Events > 0 {
		a.ApprovalRatio = round2(float64(p.Events-p.Cancelled) / float64(p.Events) * 100)
	}
	if len(a.Workloads) > 0 {
		avg := float64(a.TotalPublished) / float64(len(a.Workloads))
		a.AvgPerClub = round2(avg)
		for _, c := range a.Workloads {
			if avg > 0 && float64(c.Published) > avg*bottleneckFactor {
				a.Bottlenecks = append(a.Bottlenecks, Bottleneck{
					ClubName:         c.ClubName,
					Published:        c.Published,
					WorkloadMultiple: round2(float64(c.Published) / avg),
				})
			}
		}
	}
	a.HasBottlenecks = len(a.Bottlenecks) > 0
	if a.HasBottlenecks {
		a.Recommendations = []string{"consider spreading events from " + a.Bottlenecks[0].ClubName + " across other clubs"}
	} else {
		a.Recommendations = []string{"publishing is evenly spread across clubs"}
	}
	return a, nil
}
