package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/vaxguard/device-trust/pkg/device"
	"github.com/wneessen/go-mail"
)

const pendingDeviceTemplate = `A new device is awaiting approval.

Account:     {{.AccountID}}
Device:      {{.DeviceName}}
Browser:     {{.Browser}}
OS:          {{.OS}}
IP address:  {{.LastIPAddress}}
First seen:  {{.FirstSeen}}

Review it in the device administration console.
`

// SMTPConfig holds the SMTP delivery settings
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
	To       string
}

// EmailNotifier sends pending-device notifications over SMTP
type EmailNotifier struct {
	config SMTPConfig
	client *mail.Client
	tmpl   *template.Template
}

// NewEmailNotifier creates a mail client for the given SMTP configuration
func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if !config.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{
				InsecureSkipVerify: true,
			}),
			mail.WithTLSPolicy(mail.NoTLS),
		)
	} else {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{
				InsecureSkipVerify: true,
			}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	tmpl, err := template.New("pending_device").Parse(pendingDeviceTemplate)
	if err != nil {
		return nil, err
	}

	return &EmailNotifier{config: config, client: client, tmpl: tmpl}, nil
}

// NotifyPendingDevice emails the administrator address about a device
// awaiting approval
func (e *EmailNotifier) NotifyPendingDevice(ctx context.Context, dev device.TrustedDevice) error {
	if e.config.To == "" {
		return fmt.Errorf("pending device notification requires 'To' address")
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, dev); err != nil {
		slog.Error("Failed to render pending device notification", "err", err)
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.config.From); err != nil {
		slog.Error("Failed to set from address", "err", err)
		return err
	}
	if err := msg.To(e.config.To); err != nil {
		slog.Error("Failed to set to address", "err", err)
		return err
	}
	msg.Subject(fmt.Sprintf("New device pending approval: %s", dev.DeviceName))
	msg.SetBodyString(mail.TypeTextPlain, buf.String())

	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("Failed to send pending device notification", "err", err)
		return err
	}

	slog.Info("Pending device notification sent", "device_id", dev.ID, "to", e.config.To)
	return nil
}
