package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{in: "none", want: None},
		{in: "rank", want: Rank},
		{in: "proportional", want: Proportional},
		{in: "", err: true},
		{in: "Rank", err: true},
		{in: "sumtree", err: true},
	}

	for _, test := range tests {
		mode, err := ParseMode(test.in)
		if test.err {
			assert.Error(t, err, "expected %q to be rejected", test.in)
			assert.True(t, IsInvalidPriorityMode(err))
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, test.want, mode)
	}
}
