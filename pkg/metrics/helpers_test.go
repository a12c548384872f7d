package metrics

import (
	"fmt"
	"slices"

	dto "github.com/prometheus/client_model/go"
)

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	i := slices.IndexFunc(mfs, func(mf *dto.MetricFamily) bool { return mf.GetName() == name })
	if i < 0 {
		return nil
	}
	return mfs[i]
}

// metricWith returns the first series of family name carrying label=value.
func metricWith(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("no family %q", name)
	}
	hasLabel := func(lp *dto.LabelPair) bool { return lp.GetName() == label && lp.GetValue() == value }
	for _, m := range mf.GetMetric() {
		if slices.ContainsFunc(m.GetLabel(), hasLabel) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%s has no series with %s=%q", name, label, value)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	m, err := metricWith(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	m, err := metricWith(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return m.GetHistogram().GetSampleSum(), nil
}
