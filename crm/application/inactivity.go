package application

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// InactivityCloser cierra periódicamente conversaciones abiertas sin actividad
type InactivityCloser struct {
	conversations *ConversationService
	timeout       time.Duration
	schedule      string
	cron          *cron.Cron
}

// NewInactivityCloser recibe un schedule de cron estándar o "@every 5m"
func NewInactivityCloser(conversations *ConversationService, timeout time.Duration, schedule string) *InactivityCloser {
	return &InactivityCloser{
		conversations: conversations,
		timeout:       timeout,
		schedule:      schedule,
		cron:          cron.New(),
	}
}

// Start registra el job; con timeout <= 0 no programa nada
func (c *InactivityCloser) Start() error {
	if c.timeout <= 0 {
		logrus.Info("[SCHEDULER] Conversation auto-close disabled")
		return nil
	}
	if _, err := c.cron.AddFunc(c.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		c.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid auto-close schedule %q: %w", c.schedule, err)
	}
	c.cron.Start()
	logrus.Infof("[SCHEDULER] Auto-closing conversations idle for %s (%s)", c.timeout, c.schedule)
	return nil
}

// Stop espera a que termine una ejecución en curso
func (c *InactivityCloser) Stop() {
	<-c.cron.Stop().Done()
}

func (c *InactivityCloser) RunOnce(ctx context.Context) int {
	closed, err := c.conversations.CloseInactive(ctx, c.timeout)
	if err != nil {
		logrus.WithError(err).Error("[SCHEDULER] Auto-close run failed")
		return 0
	}
	if closed > 0 {
		logrus.Infof("[SCHEDULER] Closed %d inactive conversation(s)", closed)
	}
	return closed
}
