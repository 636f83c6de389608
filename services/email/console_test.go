package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopdesk/hoopdesk/core"
)

func TestConsoleServiceMock_RendersTemplates(t *testing.T) {
	conf := &core.Config{AppName: "Hoopdesk", FrontendBaseURL: "https://app.hoopdesk.test"}
	svc := NewConsoleServiceMock(conf)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Sam", Address: "sam@example.com"}},
			Subject:      "Your membership is running low",
			TemplateName: "membership_low_credit",
			TemplateData: map[string]interface{}{"Name": "Sam", "TypeName": "10 classes", "Remaining": 1},
		},
		&core.EmailMessage{Subject: "nobody to send to", BodyStr: "dropped"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Your 10 classes membership has 1 class(es) left.")
	assert.Contains(t, sent[0].TextContent, "https://app.hoopdesk.test")
	assert.Contains(t, sent[0].HTMLContent, "<strong>10 classes</strong>")
}

func TestConsoleServiceMock_UnknownTemplate(t *testing.T) {
	svc := NewConsoleServiceMock(&core.Config{AppName: "Hoopdesk"})
	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "sam@example.com"}},
		TemplateName: "does_not_exist",
	})
	assert.Empty(t, svc.SentMessages())
}

func TestSendgridService_Prepare(t *testing.T) {
	svc := NewSendgridService(&core.Config{AppName: "Hoopdesk"}, core.NopLogger{}).(*sendgridService)
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Sam", Address: "sam@example.com"}},
		Subject:     "Hello",
		TextContent: "hi",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Hoopdesk] Hello", m.Personalizations[0].Subject)
	assert.Len(t, m.Content, 1, "no empty html part")
}
