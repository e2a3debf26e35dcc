package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/narratex/narratex/pkg/config"
)

func TestEmailAlerterDisabledIsNoOp(t *testing.T) {
	// Enabled is false, so no SMTP connection is attempted.
	a := NewEmailAlerter(config.AlertConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		To:       []string{"ops@example.com"},
	})
	assert.NoError(t, a.Alert("circuit breaker open: oracle", "details"))
}

func TestNoOpAlerter(t *testing.T) {
	a := &NoOpAlerter{}
	assert.NoError(t, a.Alert("anything", "at all"))
}
