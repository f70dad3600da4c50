package pipeline

import "context"

// ItemOutcome is the result of one request in a batch
type ItemOutcome struct {
	Request Request
	Result  *Result
	Err     error
}

// ClassifyEach classifies every request independently. A rejected item is
// reported in its outcome and never stops the rest; once ctx is done the
// remaining items carry ctx.Err().
func (p *Pipeline) ClassifyEach(ctx context.Context, reqs []Request) []ItemOutcome {
	outcomes := make([]ItemOutcome, len(reqs))
	for i, req := range reqs {
		outcomes[i].Request = req
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}
		outcomes[i].Result, outcomes[i].Err = p.Classify(ctx, req)
	}
	return outcomes
}
