package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticClassifier Class

func (s staticClassifier) ClassifyFailure(error) Class { return Class(s) }

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want Class
	}{
		{429, RateLimited},
		{500, Transient},
		{503, Transient},
		{408, Transient},
		{401, Fatal},
		{403, Fatal},
		{400, Fatal},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, FromStatus(tt.code))
		})
	}
}

func TestClassify(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, RateLimited, Classify(staticClassifier(RateLimited), err))
	assert.Equal(t, Transient, Classify(struct{}{}, err))
	assert.Equal(t, Fatal, Classify(staticClassifier(RateLimited), fmt.Errorf("wrapped: %w", context.Canceled)))
}
