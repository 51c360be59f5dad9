// Package notify implements the push notification and email senders.
package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushSender delivers push notifications through Firebase Cloud Messaging.
type PushSender struct {
	client *messaging.Client
}

// NewPushSender initializes an FCM client from a base64-encoded service
// account JSON blob.
func NewPushSender(ctx context.Context, credentialsB64 string) (*PushSender, error) {
	credJSON, err := base64.StdEncoding.DecodeString(credentialsB64)
	if err != nil {
		return nil, fmt.Errorf("decode firebase credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credJSON))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}

	return &PushSender{client: client}, nil
}

// Send delivers a notification to a single device token and returns the FCM
// message id.
func (p *PushSender) Send(ctx context.Context, token, title, body string) (string, error) {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
				},
			},
		},
	}

	id, err := p.client.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("send push: %w", err)
	}
	return id, nil
}
