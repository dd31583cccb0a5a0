package strategy

import "context"

// Default is the no-op evaluator used when a bot's strategy type is
// unrecognized or unset. It never produces an entry.
type Default struct{}

// Evaluate implements Evaluator.
func (s *Default) Evaluate(ctx context.Context, in Input) (*Intent, error) {
	return nil, nil
}
