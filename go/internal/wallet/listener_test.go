package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	accounts []string
}

func (r *recordingNotifier) NotifyBalance(ctx context.Context, accountID string) {
	r.accounts = append(r.accounts, accountID)
}

func TestListener_HandleNotification(t *testing.T) {
	n := &recordingNotifier{}
	l := &Listener{notifier: n, cfg: DefaultListenerConfig()}

	l.handleNotification(context.Background(), " alice ")
	l.handleNotification(context.Background(), "")

	assert.Equal(t, []string{"alice"}, n.accounts)
}
