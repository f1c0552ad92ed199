package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadgate/internal/lead"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func accepted() lead.Accepted {
	return lead.Accepted{
		LeadID:       "0b6f2c1e-0000-4000-8000-000000000001",
		Phone:        "79161234567",
		Email:        "ivan@example.ru",
		UTM:          lead.UTM{Source: "yandex", Campaign: "spring"},
		PhoneInfo:    &lead.PhoneInfo{QC: 0, Provider: "МТС"},
		CRMContactID: "4242",
		AcceptedAt:   time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
}

func TestExport(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.eu-central-1.amazonaws.com/123/leads")

	require.NoError(t, p.Export(context.Background(), accepted()))
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "https://sqs.eu-central-1.amazonaws.com/123/leads", *in.QueueUrl)
	assert.Nil(t, in.MessageGroupId)
	assert.Equal(t, EventLeadAccepted, *in.MessageAttributes["event_type"].StringValue)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(*in.MessageBody), &msg))
	assert.Equal(t, "79161234567", msg.Phone)
	assert.Equal(t, "4242", msg.CRMContactID)
	assert.Equal(t, "yandex", msg.UTM.Source)
	require.NotNil(t, msg.PhoneInfo)
	assert.Equal(t, "МТС", msg.PhoneInfo.Provider)
}

func TestExportFIFO(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.eu-central-1.amazonaws.com/123/leads.fifo")

	require.NoError(t, p.Export(context.Background(), accepted()))
	in := fake.inputs[0]
	assert.Equal(t, "79161234567", *in.MessageGroupId)
	assert.Equal(t, "0b6f2c1e-0000-4000-8000-000000000001", *in.MessageDeduplicationId)
}

func TestExportError(t *testing.T) {
	p := NewPublisher(&fakeSQS{err: errors.New("AccessDenied")}, "q")
	err := p.Export(context.Background(), accepted())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}
