package mapek

// HealthStatus classifies the aggregate goal/anomaly picture for one
// analysis cycle.
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Degraded
	Unhealthy
	Critical
)

func (h HealthStatus) String() string {
	switch h {
	case Healthy:
		return "Healthy"
	case Degraded:
		return "Degraded"
	case Unhealthy:
		return "Unhealthy"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// AnomalyType classifies how a metric departed from its goal.
type AnomalyType int

const (
	AboveThreshold AnomalyType = iota
	BelowThreshold
	TrendUp
	TrendDown
)

// Anomaly is one detected deviation between a fact and its goal.
type Anomaly struct {
	Type          AnomalyType
	Metric        string
	CurrentValue  float64
	ExpectedValue float64
	Severity      float64 // 0.0-1.0
	TimestampNS   int64
}

// Analysis is one cycle's Analyze-stage output.
type Analysis struct {
	Health           HealthStatus
	ViolatedGoals    []Goal
	Anomalies        []Anomaly
	AdaptationNeeded bool
	TimestampNS      int64
}

// Analyzer evaluates goals against facts and classifies health.
type Analyzer struct {
	AnomalyThreshold float64 // fraction of target that counts as a deviation
}

// NewAnalyzer returns an Analyzer with the documented default
// deviation threshold (30%).
func NewAnalyzer() *Analyzer {
	return &Analyzer{AnomalyThreshold: 0.3}
}

// Analyze evaluates snap's goals against its facts, producing one
// Analysis. It never mutates snap.
func (a *Analyzer) Analyze(snap *KnowledgeSnapshot) Analysis {
	result := Analysis{TimestampNS: Now()}

	for _, g := range snap.Goals {
		fact, ok := snap.Facts[g.Metric]
		if !ok {
			continue
		}
		if g.Distance(fact.Value) > a.AnomalyThreshold {
			result.ViolatedGoals = append(result.ViolatedGoals, g)
		}
	}

	result.Anomalies = a.detectAnomalies(snap)
	result.Health = a.calculateHealth(result.ViolatedGoals, result.Anomalies)
	result.AdaptationNeeded = result.Health != Healthy || len(result.Anomalies) > 0
	return result
}

func (a *Analyzer) detectAnomalies(snap *KnowledgeSnapshot) []Anomaly {
	var anomalies []Anomaly
	for _, g := range snap.Goals {
		fact, ok := snap.Facts[g.Metric]
		if !ok {
			continue
		}
		switch {
		case fact.Value > g.Target*(1+a.AnomalyThreshold):
			anomalies = append(anomalies, Anomaly{
				Type:          AboveThreshold,
				Metric:        g.Metric,
				CurrentValue:  fact.Value,
				ExpectedValue: g.Target,
				Severity:      clamp01(g.Distance(fact.Value)),
				TimestampNS:   fact.TimestampNS,
			})
		case fact.Value < g.Target*(1-a.AnomalyThreshold):
			anomalies = append(anomalies, Anomaly{
				Type:          BelowThreshold,
				Metric:        g.Metric,
				CurrentValue:  fact.Value,
				ExpectedValue: g.Target,
				Severity:      clamp01(g.Distance(fact.Value)),
				TimestampNS:   fact.TimestampNS,
			})
		}

		history := snap.History[g.Metric]
		if len(history) < 3 {
			continue
		}
		if trendingUp(history) {
			anomalies = append(anomalies, Anomaly{
				Type: TrendUp, Metric: g.Metric, CurrentValue: fact.Value,
				ExpectedValue: g.Target, Severity: 0.5, TimestampNS: fact.TimestampNS,
			})
		} else if trendingDown(history) {
			anomalies = append(anomalies, Anomaly{
				Type: TrendDown, Metric: g.Metric, CurrentValue: fact.Value,
				ExpectedValue: g.Target, Severity: 0.5, TimestampNS: fact.TimestampNS,
			})
		}
	}
	return anomalies
}

func (a *Analyzer) calculateHealth(violated []Goal, anomalies []Anomaly) HealthStatus {
	if len(violated) == 0 && len(anomalies) == 0 {
		return Healthy
	}
	var score float64
	for _, g := range violated {
		score += float64(g.Priority) / 100
	}
	for _, an := range anomalies {
		score += an.Severity
	}
	switch {
	case score > 2:
		return Critical
	case score > 1:
		return Unhealthy
	default:
		return Degraded
	}
}

func trendingUp(history []Fact) bool {
	increases := 0
	for i := 1; i < len(history); i++ {
		if history[i].Value > history[i-1].Value {
			increases++
		}
	}
	return increases*3 >= len(history)*2
}

func trendingDown(history []Fact) bool {
	decreases := 0
	for i := 1; i < len(history); i++ {
		if history[i].Value < history[i-1].Value {
			decreases++
		}
	}
	return decreases*3 >= len(history)*2
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
