package effects

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"application-engine/internal/engine/schema"
	"application-engine/internal/models"
)

// EmailSender is the slice of the SES client the email effect needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is the slice of the SNS client the SMS effect needs.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// NewEmailEffect sends a notification email. Params:
//
//	toPath  - answers path holding the recipient address
//	subject - message subject
//	message - message body
func NewEmailEffect(sender EmailSender, from string) Handler {
	return func(ctx context.Context, app *models.Application, params map[string]interface{}) error {
		to, err := answerString(app, params, "toPath")
		if err != nil {
			return err
		}
		subject, _ := params["subject"].(string)
		message, _ := params["message"].(string)

		_, err = sender.SendEmail(ctx, &ses.SendEmailInput{
			Source: awssdk.String(from),
			Destination: &sestypes.Destination{
				ToAddresses: []string{to},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: awssdk.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: awssdk.String(message)},
				},
			},
		})
		return err
	}
}

// NewSMSEffect sends a notification SMS. Params:
//
//	phonePath - answers path holding the recipient phone number
//	message   - message body
func NewSMSEffect(sender SMSSender) Handler {
	return func(ctx context.Context, app *models.Application, params map[string]interface{}) error {
		phone, err := answerString(app, params, "phonePath")
		if err != nil {
			return err
		}
		message, _ := params["message"].(string)

		_, err = sender.Publish(ctx, &sns.PublishInput{
			PhoneNumber: awssdk.String(phone),
			Message:     awssdk.String(message),
		})
		return err
	}
}

func answerString(app *models.Application, params map[string]interface{}, key string) (string, error) {
	path, _ := params[key].(string)
	if path == "" {
		return "", fmt.Errorf("effect param %q missing", key)
	}
	value, ok := schema.GetPath(app.Answers, path)
	if !ok {
		return "", fmt.Errorf("answers path %q not set", path)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("answers path %q is not a string", path)
	}
	return s, nil
}
