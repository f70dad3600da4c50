package decision

import "github.com/zombar/truthlens/internal/models"

// Recommendations, in precedence order
const (
	AdviceUncertain    = "Uncertain result: verify with additional sources"
	AdviceHighFake     = "High fake-news probability: distrust"
	AdviceProbableFake = "Probable fake news: verify carefully"
	AdvicePossibleFake = "Possible fake news: investigate further"
	AdviceProbableReal = "Probable real news: but always verify"
	AdviceAmbiguous    = "Ambiguous result: apply editorial judgment"
	AdviceModelFailure = "Model unavailable: the content could not be evaluated"
)

// Advise maps a decision to a recommendation. The first matching band wins,
// so a narrow margin always reads as uncertain.
func Advise(d models.Decision) string {
	switch {
	case d.Label == models.LabelError:
		return AdviceModelFailure
	case d.ProbabilityDifference < 0.2:
		return AdviceUncertain
	case d.ProbabilityFake > 0.9:
		return AdviceHighFake
	case d.ProbabilityFake > 0.8:
		return AdviceProbableFake
	case d.ProbabilityFake > 0.6:
		return AdvicePossibleFake
	case d.ProbabilityTrue > 0.8:
		return AdviceProbableReal
	default:
		return AdviceAmbiguous
	}
}
