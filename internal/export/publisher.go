// Package export publishes accepted leads to an SQS queue for the CRM and
// call-center consumers.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/leadgate/internal/lead"
)

// EventLeadAccepted is the event_type attribute of every message.
const EventLeadAccepted = "lead.accepted"

// SQSAPI is the subset of *sqs.Client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Message is the queue payload.
type Message struct {
	EventType    string          `json:"event_type"`
	LeadID       string          `json:"lead_id"`
	Phone        string          `json:"phone"`
	Email        string          `json:"email,omitempty"`
	Name         string          `json:"name,omitempty"`
	UTM          lead.UTM        `json:"utm"`
	ClientID     string          `json:"client_id,omitempty"`
	PhoneInfo    *lead.PhoneInfo `json:"phone_info,omitempty"`
	RiskScore    int             `json:"risk_score"`
	Warnings     []string        `json:"warnings,omitempty"`
	CRMContactID string          `json:"crm_contact_id,omitempty"`
	AcceptedAt   time.Time       `json:"accepted_at"`
}

// Publisher implements intake.Exporter.
type Publisher struct {
	client   SQSAPI
	queueURL string
	fifo     bool
}

// NewPublisher creates a publisher for queueURL.
func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

// Export sends one accepted lead. FIFO queues group by phone so a
// consumer sees one contact's leads in order.
func (p *Publisher) Export(ctx context.Context, l lead.Accepted) error {
	body, err := json.Marshal(Message{
		EventType:    EventLeadAccepted,
		LeadID:       l.LeadID,
		Phone:        l.Phone,
		Email:        l.Email,
		Name:         l.Name,
		UTM:          l.UTM,
		ClientID:     l.ClientID,
		PhoneInfo:    l.PhoneInfo,
		RiskScore:    l.RiskScore,
		Warnings:     l.Warnings,
		CRMContactID: l.CRMContactID,
		AcceptedAt:   l.AcceptedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal lead %s: %w", l.LeadID, err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventLeadAccepted)},
		},
	}
	if p.fifo {
		in.MessageGroupId = aws.String(l.Phone)
		in.MessageDeduplicationId = aws.String(l.LeadID)
	}

	if _, err := p.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("publish lead %s: %w", l.LeadID, err)
	}
	return nil
}
