package dispatch_test

import (
	"testing"

	"github.com/fwojciec/dispatch"
	"github.com/stretchr/testify/assert"
)

func TestPrepare(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		prior string
		want  string
	}{
		{"no prior", "get the stuck items", "", "get the stuck items"},
		{"blank prior", "get the stuck items", "  \n", "get the stuck items"},
		{
			"with prior",
			"email it to ann@example.com",
			"Here is your link: https://buy.stripe.com/x",
			"Given the previous message: \"Here is your link: https://buy.stripe.com/x\"\nAnswer this new message: email it to ann@example.com.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, dispatch.Prepare(tt.raw, tt.prior))
		})
	}
}

func TestPrepare_Deterministic(t *testing.T) {
	t.Parallel()
	a := dispatch.Prepare("next", "prev")
	b := dispatch.Prepare("next", "prev")
	assert.Equal(t, a, b)
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "thinking", dispatch.StateThinking.String())
	assert.True(t, dispatch.StateDone.Terminal())
	assert.True(t, dispatch.StateFailed.Terminal())
	assert.False(t, dispatch.StateCalling.Terminal())
}

func TestCredentials_StringRedacts(t *testing.T) {
	t.Parallel()
	c := dispatch.Credentials{TaskBoard: "secret-monday", Mail: "re_secret"}
	s := c.String()
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "TaskBoard:set")
	assert.Contains(t, s, "Messaging:unset")
}
