package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{domain.InvalidMedia("empty upload"), OutcomeInvalidMedia},
		{domain.OwnerNotFound(domain.OwnerKindAvatar, "u1"), OutcomeOwnerNotFound},
		{domain.TranscodeFailed(errors.New("encoder")), OutcomeTranscodeError},
		{domain.StorageFailed(errors.New("disk full")), OutcomeStorageFailure},
		{fmt.Errorf("link owner: %w", errors.New("db down")), OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err))
	}
}

func TestObserveStage(t *testing.T) {
	before := testutil.CollectAndCount(StageDuration)
	ObserveStage("metrics-test-stage", time.Now().Add(-10*time.Millisecond))
	assert.Equal(t, before+1, testutil.CollectAndCount(StageDuration))
}
