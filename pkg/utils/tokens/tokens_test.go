package tokens_test

import (
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/utils/tokens"
)

func TestEstimate(t *testing.T) {
	gt.Equal(t, tokens.Estimate(""), 0)
	gt.Equal(t, tokens.Estimate("abc"), 1)
	gt.Equal(t, tokens.Estimate("abcdefgh"), 2)
	gt.Equal(t, tokens.Estimate("ñandú"), 2)
}

func TestCount(t *testing.T) {
	// tiktoken downloads the BPE ranks on first use
	if os.Getenv("TEST_TIKTOKEN") == "" {
		t.Skip("TEST_TIKTOKEN is not set")
	}

	gt.Equal(t, tokens.Count("hello world"), 2)
}
