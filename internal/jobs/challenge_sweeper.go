package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/sirupsen/logrus"
)

// ChallengeSweeper reconciles challenges whose window has lapsed with
// unfinished moments: the challenge flag comes off, outstanding moments
// are discarded and the owner's slot frees up.
type ChallengeSweeper struct {
	BucketService *services.BucketService
}

// NewChallengeSweeper creates a new instance of ChallengeSweeper.
func NewChallengeSweeper(bucketService *services.BucketService) *ChallengeSweeper {
	return &ChallengeSweeper{BucketService: bucketService}
}

// Run performs one sweep over all expired challenges.
func (s *ChallengeSweeper) Run(ctx context.Context) error {
	swept, err := s.BucketService.SweepExpiredChallenges(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to sweep expired challenges: %v", err)
	}

	logrus.WithField("count", swept).Info("Challenge sweep completed")
	return nil
}
