package eligibility

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks RuleLoader

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/liamcoop/scholarships/eligibility/mocks"
	"github.com/liamcoop/scholarships/internal/metrics"
	"github.com/liamcoop/scholarships/rules"
	"github.com/liamcoop/scholarships/scholarships"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockLoader *mocks.MockRuleLoader
	metrics    *metrics.Metrics
	service    *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockLoader = mocks.NewMockRuleLoader(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = New(s.mockLoader, WithMetrics(s.metrics), WithConcurrency(2))
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func minAge(id string, age float64) []rules.Node {
	return []rules.Node{
		&rules.Leaf{ID: id, Type: rules.TypeMinScore, Field: "age", Value: age, Message: "too young", MessageKey: "rules.age"},
	}
}

func enabled(ids ...string) []scholarships.Scholarship {
	list := make([]scholarships.Scholarship, 0, len(ids))
	for _, id := range ids {
		list = append(list, scholarships.Scholarship{ID: id, Name: id + " name", IsEnabled: true})
	}
	return list
}

func (s *ServiceSuite) TestClassificationAcrossThreeScholarships() {
	list := enabled("a", "b", "c")

	testCases := []struct {
		name string
		ages map[string]float64
		want Outcome
	}{
		{"all fail", map[string]float64{"a": 30, "b": 40, "c": 50}, OutcomeFailAll},
		{"one passes", map[string]float64{"a": 18, "b": 40, "c": 50}, OutcomePassSome},
		{"all pass", map[string]float64{"a": 18, "b": 19, "c": 20}, OutcomePassAll},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			for id, age := range tc.ages {
				s.mockLoader.EXPECT().Load(gomock.Any(), id).Return(minAge(id+"-age", age))
			}

			summaries := s.service.EvaluateForApplicant(context.Background(), map[string]any{"age": "20"}, list)

			s.Require().Len(summaries, 3)
			s.Equal(tc.want, Classify(summaries))
		})
	}
}

func (s *ServiceSuite) TestSummaryCarriesReasons() {
	s.mockLoader.EXPECT().Load(gomock.Any(), "aas").Return([]rules.Node{
		&rules.Leaf{ID: "age", Type: rules.TypeMinScore, Field: "age", Value: 18.0, Message: "too young", MessageKey: "rules.age"},
		&rules.Leaf{ID: "exp", Type: rules.TypeMinScore, Field: "yearsOfExperience", Value: 2.0, Message: "more experience preferred", Severity: rules.SeverityWarn},
	})

	summaries := s.service.EvaluateForApplicant(context.Background(),
		map[string]any{"age": 17, "monthsOfExperience": 12}, enabled("aas"))

	s.Require().Len(summaries, 1)
	s.Equal("aas", summaries[0].ID)
	s.Equal("aas name", summaries[0].Name)
	s.False(summaries[0].Eligible)
	s.Equal([]Reason{
		{Message: "too young", MessageKey: "rules.age", Severity: rules.SeverityBlocker},
		{Message: "more experience preferred", Severity: rules.SeverityWarn},
	}, summaries[0].Reasons)
}

func (s *ServiceSuite) TestAnswersAreNormalizedBeforeEvaluation() {
	s.mockLoader.EXPECT().Load(gomock.Any(), "chevening").Return([]rules.Node{
		&rules.Leaf{ID: "exp", Type: rules.TypeMinScore, Field: "yearsOfExperience", Value: 2.0, Message: "experience"},
		&rules.Leaf{ID: "degree", Type: rules.TypeSelect, Field: "degreeLevel", Value: "bachelor", Message: "degree"},
	})

	raw := map[string]any{
		"monthsOfExperience": "36",
		"degreeLevel":        []any{"bachelor", "master"},
	}
	summaries := s.service.EvaluateForApplicant(context.Background(), raw, enabled("chevening"))

	s.Require().Len(summaries, 1)
	s.True(summaries[0].Eligible)
	s.Empty(summaries[0].Reasons)
	s.Equal([]any{"bachelor", "master"}, raw["degreeLevel"], "raw answers must not be mutated")
}

func (s *ServiceSuite) TestDisabledScholarshipsAreSkipped() {
	list := []scholarships.Scholarship{
		{ID: "on", Name: "On", IsEnabled: true},
		{ID: "off", Name: "Off", IsEnabled: false},
	}
	s.mockLoader.EXPECT().Load(gomock.Any(), "on").Return([]rules.Node{})

	summaries := s.service.EvaluateForApplicant(context.Background(), map[string]any{}, list)

	s.Require().Len(summaries, 1)
	s.Equal("on", summaries[0].ID)
	s.True(summaries[0].Eligible, "no rules evaluates as eligible")
}

func (s *ServiceSuite) TestPanicIsIsolatedToOneScholarship() {
	s.mockLoader.EXPECT().Load(gomock.Any(), "ok-1").Return(minAge("a", 18))
	s.mockLoader.EXPECT().Load(gomock.Any(), "broken").DoAndReturn(
		func(context.Context, string) []rules.Node { panic("store exploded") })
	s.mockLoader.EXPECT().Load(gomock.Any(), "ok-2").Return(minAge("b", 18))

	summaries := s.service.EvaluateForApplicant(context.Background(), map[string]any{"age": 21}, enabled("ok-1", "broken", "ok-2"))

	s.Require().Len(summaries, 3)
	s.True(summaries[0].Eligible)
	s.Equal(Summary{
		ID:       "broken",
		Name:     "broken name",
		Eligible: false,
		Reasons:  []Reason{GenericErrorReason},
	}, summaries[1])
	s.True(summaries[2].Eligible)
	s.Equal(OutcomePassSome, Classify(summaries))

	s.Equal(1.0, testutil.ToFloat64(s.metrics.EvaluationErrors.WithLabelValues("broken")))
	s.Equal(2.0, testutil.ToFloat64(s.metrics.ScholarshipOutcome.WithLabelValues("ok-1", "true"))+
		testutil.ToFloat64(s.metrics.ScholarshipOutcome.WithLabelValues("ok-2", "true")))
}

func (s *ServiceSuite) TestOrderIsPreservedUnderConcurrency() {
	ids := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	for _, id := range ids {
		s.mockLoader.EXPECT().Load(gomock.Any(), id).Return([]rules.Node{})
	}

	summaries := s.service.EvaluateForApplicant(context.Background(), nil, enabled(ids...))

	s.Require().Len(summaries, len(ids))
	for i, id := range ids {
		s.Equal(id, summaries[i].ID)
	}
}

func (s *ServiceSuite) TestEmptyScholarshipList() {
	summaries := s.service.EvaluateForApplicant(context.Background(), map[string]any{"age": 30}, nil)

	s.Empty(summaries)
	s.Equal(OutcomeFailAll, Classify(summaries))
}
