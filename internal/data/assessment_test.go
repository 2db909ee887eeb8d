package data

import "testing"

func yesAnswers(n int) []bool {
	answers := make([]bool, len(AssessmentQuestions))
	for i := 0; i < n; i++ {
		answers[i] = true
	}
	return answers
}

func TestAssessThresholds(t *testing.T) {
	cases := []struct {
		yes  int
		want HealthTag
	}{
		{15, TagHealthy},
		{13, TagHealthy},
		{12, TagHealthy},
		{11, TagSubhealthy},
		{9, TagSubhealthy},
		{8, TagSubhealthy},
		{7, TagUnhealthy},
		{5, TagUnhealthy},
		{0, TagUnhealthy},
	}
	for _, c := range cases {
		tag, score := Assess(yesAnswers(c.yes))
		if score != c.yes {
			t.Errorf("%d yes answers: expected score %d, got %d", c.yes, c.yes, score)
		}
		if tag != c.want {
			t.Errorf("score %d: expected %s, got %s", c.yes, c.want, tag)
		}
	}
}

func TestAssessIsPure(t *testing.T) {
	answers := yesAnswers(9)
	tag1, _ := Assess(answers)
	tag2, _ := Assess(answers)
	if tag1 != tag2 {
		t.Fatal("Assess is not deterministic")
	}
}
