// Package email delivers customer-facing mail over SMTP.
package email

import "context"

// Attachment represents a file attachment for an email.
type Attachment struct {
	FileName string
	Content  []byte
}

// ProposalPhoto pairs the customer's original photo with its generated
// visualization, both as presigned download URLs.
type ProposalPhoto struct {
	BeforeURL string
	AfterURL  string
}

// ProposalEmailData carries everything the proposal template renders.
type ProposalEmailData struct {
	ConsumerName string
	EstimateText string
	Photos       []ProposalPhoto
	ProposalURL  string
}

// Sender delivers transactional email.
type Sender interface {
	SendProposalEmail(ctx context.Context, toEmail string, data ProposalEmailData, attachments ...Attachment) error
}

// NoopSender is used when email delivery is disabled. Sends succeed without
// doing anything, so the APPROVED to COMPLETED transition still happens in
// development environments.
type NoopSender struct{}

func (NoopSender) SendProposalEmail(ctx context.Context, toEmail string, data ProposalEmailData, attachments ...Attachment) error {
	return nil
}
