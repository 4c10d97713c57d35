package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/mail"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/mail/mocks"
)

func TestMailDispatcherSendsRenderedMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)

	var sent mail.Message
	mailer.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg mail.Message) error {
			sent = msg
			return nil
		})

	dispatcher, err := NewMailDispatcher(mailer, WithReplyTo("support@eksms.test"))
	require.NoError(t, err)

	err = dispatcher.Send(context.Background(), TemplateApplicantVerification, "musu@example.com", map[string]string{
		"school_name":    "Harbel High",
		"applicant_name": "Musu",
		"link":           "https://eksms.test/register/verify?token=abc",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"musu@example.com"}, sent.To)
	require.Equal(t, "support@eksms.test", sent.ReplyTo)
	require.Equal(t, "Verify your EK-SMS application for Harbel High", sent.Subject)
	require.Contains(t, sent.Body, "https://eksms.test/register/verify?token=abc")
}

func TestMailDispatcherTreatsDisabledSMTPAsSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)
	mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(mail.ErrSMTPDisabled)

	dispatcher, err := NewMailDispatcher(mailer)
	require.NoError(t, err)

	require.NoError(t, dispatcher.Send(context.Background(), TemplateApproved, "head@example.com", nil))
}

func TestMailDispatcherPropagatesFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)
	boom := errors.New("connection refused")
	mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(boom)

	dispatcher, err := NewMailDispatcher(mailer)
	require.NoError(t, err)

	err = dispatcher.Send(context.Background(), TemplateRejected, "head@example.com", nil)
	require.ErrorIs(t, err, boom)
}

func TestMailDispatcherRejectsUnknownTemplateWithoutSending(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)

	dispatcher, err := NewMailDispatcher(mailer)
	require.NoError(t, err)

	err = dispatcher.Send(context.Background(), "missing", "head@example.com", nil)
	require.ErrorIs(t, err, ErrUnknownTemplate)

	err = dispatcher.Send(context.Background(), TemplateApproved, "  ", nil)
	require.Error(t, err)
}

func TestNewMailDispatcherRequiresMailer(t *testing.T) {
	_, err := NewMailDispatcher(nil)
	require.Error(t, err)
}
