package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/rs/zerolog"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Mailer sends account security notices
type Mailer struct {
	config Config
	log    zerolog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a new Mailer instance
func New(cfg Config, log zerolog.Logger) *Mailer {
	return &Mailer{
		config: cfg,
		log:    log.With().Str("component", "mailer").Logger(),
		send:   smtp.SendMail,
	}
}

// DeviceNotice describes the device a notice is about
type DeviceNotice struct {
	DeviceName string
	DeviceType string
	DeviceID   string
	At         time.Time
}

// SendDeviceEnrolled tells the account owner a device received a certificate
func (m *Mailer) SendDeviceEnrolled(toEmail, name string, device DeviceNotice) error {
	body, err := render(enrolledTemplate, name, device)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return m.deliver(toEmail, "ReelSync - New device enrolled", body)
}

// SendDeviceRevoked tells the account owner a device certificate was revoked
func (m *Mailer) SendDeviceRevoked(toEmail, name string, device DeviceNotice) error {
	body, err := render(revokedTemplate, name, device)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return m.deliver(toEmail, "ReelSync - Device access revoked", body)
}

// deliver sends an email via SMTP
func (m *Mailer) deliver(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)

	var msg bytes.Buffer
	for _, h := range [][2]string{
		{"From", fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From)},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="utf-8"`},
	} {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if err := m.send(addr, auth, m.config.From, []string{to}, msg.Bytes()); err != nil {
		m.log.Error().Err(err).Str("to", to).Msg("send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

func render(t *template.Template, name string, device DeviceNotice) (string, error) {
	var buf bytes.Buffer
	err := t.Execute(&buf, map[string]interface{}{
		"Name":       name,
		"DeviceName": device.DeviceName,
		"DeviceType": device.DeviceType,
		"DeviceID":   device.DeviceID,
		"At":         device.At.UTC().Format("2006-01-02 15:04 MST"),
	})
	return buf.String(), err
}

const layout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#0f0f23;font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;">
    <div style="max-width:500px;margin:40px auto;background:#16213e;border-radius:16px;overflow:hidden;">
        <div style="background:{{template "accent"}};padding:32px;text-align:center;">
            <h1 style="color:#fff;margin:0;font-size:28px;font-weight:700;">🎬 ReelSync</h1>
            <p style="color:rgba(255,255,255,0.85);margin:8px 0 0;font-size:14px;">{{template "heading"}}</p>
        </div>

        <div style="padding:32px;">
            <p style="color:#e2e8f0;font-size:16px;line-height:1.6;margin:0 0 24px;">
                Hi <strong>{{.Name}}</strong>,
            </p>
            <p style="color:#94a3b8;font-size:14px;line-height:1.6;margin:0 0 24px;">
                {{template "lead" .}}
            </p>

            <div style="background:rgba(255,255,255,0.05);border-radius:12px;padding:16px 24px;margin:0 0 24px;color:#e2e8f0;font-size:14px;line-height:1.8;">
                <div><strong>Device:</strong> {{.DeviceName}}</div>
                <div><strong>Type:</strong> {{.DeviceType}}</div>
                <div><strong>When:</strong> {{.At}}</div>
                <div style="font-family:'Courier New',monospace;font-size:12px;color:#94a3b8;">{{.DeviceID}}</div>
            </div>

            <p style="color:#64748b;font-size:13px;line-height:1.5;margin:0;">
                {{template "footnote"}}
            </p>
        </div>
    </div>
</body>
</html>`

var enrolledTemplate = template.Must(template.Must(template.New("enrolled").Parse(layout)).Parse(`
{{define "accent"}}#6366f1{{end}}
{{define "heading"}}New device enrolled{{end}}
{{define "lead"}}A device was issued a sign-in certificate for your account.{{end}}
{{define "footnote"}}If this wasn't you, revoke the device from your device list and change your password.{{end}}`))

var revokedTemplate = template.Must(template.Must(template.New("revoked").Parse(layout)).Parse(`
{{define "accent"}}#ef4444{{end}}
{{define "heading"}}Device access revoked{{end}}
{{define "lead"}}The certificate of this device was revoked and its sessions were signed out.{{end}}
{{define "footnote"}}The device has to enroll again before it can sign in with a certificate.{{end}}`))
