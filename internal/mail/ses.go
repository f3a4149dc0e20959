// internal/mail/ses.go
package mail

import (
	"context"
	"time"

	"clinic-reminders/internal/common/config"
	errs "clinic-reminders/internal/common/errors"
	"clinic-reminders/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the slice of the SES client the transport needs. Defined here
// for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport sends mail through Amazon SES. Every send runs under its own
// bounded timeout so a stuck delivery cannot stall a whole batch.
type SESTransport struct {
	client  SESService
	from    string
	timeout time.Duration
	logger  logger.Logger
}

// NewSESTransport builds a transport from the mail section of the config.
// secretKey is the AWS secret access key fetched from the secret store; when
// it or AccessKeyID is empty the default credential chain is used instead.
func NewSESTransport(ctx context.Context, cfg config.MailConfig, secretKey string, log logger.Logger) (*SESTransport, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AccessKeyID != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.NewConfigurationError("load AWS config: " + err.Error())
	}

	return &SESTransport{
		client:  ses.NewFromConfig(awsCfg),
		from:    cfg.FromEmail,
		timeout: cfg.GetSendTimeout(),
		logger:  log.WithFields(map[string]interface{}{"component": "ses-transport"}),
	}, nil
}

// NewSESTransportWithClient wires an explicit client, used by tests.
func NewSESTransportWithClient(client SESService, from string, timeout time.Duration, log logger.Logger) *SESTransport {
	return &SESTransport{client: client, from: from, timeout: timeout, logger: log}
}

func (t *SESTransport) Send(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	_, err := t.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(t.from),
	})
	if err != nil {
		t.logger.WithError(err).Error("email send failed", map[string]interface{}{
			"to": to,
		})
		return errs.NewSendFailure(to, err)
	}

	t.logger.Debug("email sent", map[string]interface{}{"to": to})
	return nil
}
