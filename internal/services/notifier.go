package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tuteur-backend/internal/models"
)

// SessionChannel is the pub/sub channel carrying a session's events.
func SessionChannel(sessionID string) string {
	return "session_updates:" + sessionID
}

// RedisNotifier publishes session events so any instance holding the
// WebSocket can relay them.
type RedisNotifier struct {
	redis *redis.Client
	log   logrus.FieldLogger
}

func NewRedisNotifier(client *redis.Client, log logrus.FieldLogger) *RedisNotifier {
	return &RedisNotifier{redis: client, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context, sessionID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := n.redis.Publish(ctx, SessionChannel(sessionID), string(data)).Err(); err != nil {
		n.log.WithError(err).WithField("session_id", sessionID).Debug("Failed to publish session event")
	}
}
