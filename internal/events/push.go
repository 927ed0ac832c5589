package events

import (
	"context"
	"sync"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

const pushTimeout = 5 * time.Second

// MessageSender is the part of the FCM client the notifier uses.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier sends each event to the FCM topic of every recipient. Mobile
// clients subscribe to TopicFor(their account id) after signing in.
type PushNotifier struct {
	client MessageSender
	logger Logger
	wg     sync.WaitGroup
}

func NewPushNotifier(client MessageSender, logger Logger) *PushNotifier {
	return &PushNotifier{client: client, logger: logger}
}

// NewFirebaseMessaging builds an FCM client from a service account file.
func NewFirebaseMessaging(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(err, "firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase messaging")
	}
	return client, nil
}

func TopicFor(accountID string) string {
	return "account-" + accountID
}

// Publish sends in the background; the caller's request is not held up by FCM.
func (n *PushNotifier) Publish(_ context.Context, ev Event) {
	for _, id := range dedupe(ev.Recipients) {
		msg := &messaging.Message{
			Topic: TopicFor(id),
			Notification: &messaging.Notification{
				Title: title(ev),
				Body:  ev.Status,
			},
			Data: map[string]string{
				"kind":        string(ev.Kind),
				"resource_id": ev.ResourceID,
				"status":      ev.Status,
			},
			Android: &messaging.AndroidConfig{
				Priority: "high",
			},
		}
		n.wg.Add(1)
		go func(id string) {
			defer n.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
			defer cancel()
			if _, err := n.client.Send(ctx, msg); err != nil && n.logger != nil {
				n.logger.Errorf("events: push %s to %s: %v", ev.Kind, id, err)
			}
		}(id)
	}
}

// Wait blocks until every in-flight send has finished.
func (n *PushNotifier) Wait() {
	n.wg.Wait()
}

func title(ev Event) string {
	switch ev.Kind {
	case PickupCreated:
		return "Pickup requested"
	case PickupAssigned:
		return "Agent assigned"
	case PickupStatus:
		return "Pickup updated"
	case AccountStatus:
		return "Account status changed"
	case AppealResolved:
		return "Appeal resolved"
	}
	return "Update"
}
