package data

// AssessmentQuestions is the fixed self-assessment battery shown to
// students. Each question is answered yes/no; "yes" counts toward the
// score.
var AssessmentQuestions = [15]string{
	"I feel mentally well and hopeful about the future.",
	"I have been sleeping well lately, with little insomnia or early waking.",
	"I can keep my emotions under control and rarely lose my temper.",
	"I feel capable of solving the difficulties in my studies and daily life.",
	"I enjoy social activities and draw real pleasure from being with people.",
	"I can concentrate on my studies and work efficiently.",
	"I rarely feel tense, anxious, or worried for no clear reason.",
	"I still take a strong interest in my usual hobbies.",
	"I feel physically healthy and do not tire easily.",
	"I can accept criticism with an open mind and learn from it.",
	"I find life meaningful and my days fulfilling.",
	"I do not easily fall into self-blame or self-doubt.",
	"I can face setbacks calmly and recover from them quickly.",
	"I feel supported and understood by my friends and family.",
	"I have never had thoughts of harming myself or ending my life.",
}

// Thresholds mapping the affirmative-answer count to a health tag.
const (
	healthyScore    = 12
	subhealthyScore = 8
)

// Assess scores a completed battery: the count of affirmative answers,
// thresholded into a tag (>=12 healthy, >=8 subhealthy, below that
// unhealthy). Pure function; nothing is published until the caller passes
// the tag to RosterStore.SetHealthTag.
func Assess(answers []bool) (HealthTag, int) {
	score := 0
	for _, yes := range answers {
		if yes {
			score++
		}
	}
	return TagForScore(score), score
}

// TagForScore maps a raw score to its health tag.
func TagForScore(score int) HealthTag {
	switch {
	case score >= healthyScore:
		return TagHealthy
	case score >= subhealthyScore:
		return TagSubhealthy
	default:
		return TagUnhealthy
	}
}
