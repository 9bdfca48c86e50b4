package engine

import "errors"

// ErrInvalidTransition reports a campaign status command issued from the
// wrong state, e.g. pausing a campaign that is not active. The row is left
// untouched; the command loser simply observes the other writer's state.
var ErrInvalidTransition = errors.New("campaign is not in the required status")
