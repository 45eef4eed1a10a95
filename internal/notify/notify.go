// Package notify publishes post-commit email notifications onto the queue.
package notify

import (
	"encoding/json"
	"fmt"

	"symposium/internal/rabbit"
)

// EmailMessage is the wire shape consumed by the notification worker.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Queue satisfies the mail-dispatch contract by enqueueing instead of
// sending inline; the worker owns actual SMTP delivery.
type Queue struct {
	rbt *rabbit.Client
}

func NewQueue(rbt *rabbit.Client) *Queue {
	return &Queue{rbt: rbt}
}

func (q *Queue) Send(to, subject, body string) error {
	payload, err := json.Marshal(EmailMessage{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("marshal email message: %w", err)
	}
	return q.rbt.Publish(payload)
}
