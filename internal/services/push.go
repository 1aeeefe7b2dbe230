package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNsConfig holds the token-based credentials for Apple push
type APNsConfig struct {
	KeyFile    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// APNsNotifier sends alert pushes to iOS devices
type APNsNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAPNsNotifier loads the .p8 signing key and creates a token client
func NewAPNsNotifier(cfg APNsConfig) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsNotifier{client: client, topic: cfg.Topic}, nil
}

// Notify sends alert to the device with the given token
func (n *APNsNotifier) Notify(ctx context.Context, deviceToken, alert string) error {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		Payload:     payload.NewPayload().AlertTitle("Photo Frame").AlertBody(alert).Sound("default"),
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().Str("apns_id", res.ApnsID).Msg("Push notification sent")
	return nil
}
