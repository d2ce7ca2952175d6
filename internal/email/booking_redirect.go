package email

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// BookingRedirectNotification tells a delegate that bookings for another user
// will be redirected to them.
type BookingRedirectNotification struct {
	Language  string // recipient-facing language, e.g. "en" or "de-AT"
	FromEmail string // the user who is out of office
	ToEmail   string // the delegate
	ToName    string
	Dates     string // e.g. "03/10/2030 - 03/12/2030"
}

type redirectCopy struct {
	subject  string
	greeting string
	body     string
	link     string
}

var redirectTexts = map[string]redirectCopy{
	"en": {
		subject:  "Bookings for %s are being redirected to you",
		greeting: "Hi %s,",
		body:     "%s is out of office for %s. Bookings made with them during that time will be redirected to you.",
		link:     "Manage your availability at %s",
	},
	"de": {
		subject:  "Buchungen für %s werden an dich weitergeleitet",
		greeting: "Hallo %s,",
		body:     "%s ist im Zeitraum %s abwesend. Buchungen in dieser Zeit werden an dich weitergeleitet.",
		link:     "Verwalte deine Verfügbarkeit unter %s",
	},
	"es": {
		subject:  "Las reservas de %s se redirigen a ti",
		greeting: "Hola %s,",
		body:     "%s estará fuera de la oficina durante %s. Las reservas de ese periodo se redirigirán a ti.",
		link:     "Gestiona tu disponibilidad en %s",
	},
	"fr": {
		subject:  "Les réservations de %s vous sont redirigées",
		greeting: "Bonjour %s,",
		body:     "%s est absent(e) pendant la période %s. Les réservations de cette période vous seront redirigées.",
		link:     "Gérez votre disponibilité sur %s",
	},
}

func copyFor(language string) redirectCopy {
	lang := strings.ToLower(language)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if c, ok := redirectTexts[lang]; ok {
		return c
	}
	return redirectTexts["en"]
}

// SendBookingRedirectNotification emails the delegate named in n. Replies go
// to the user who is away.
func (c *Client) SendBookingRedirectNotification(ctx context.Context, n BookingRedirectNotification) error {
	if n.ToEmail == "" {
		return fmt.Errorf("booking redirect notification: missing recipient")
	}

	t := copyFor(n.Language)
	name := n.ToName
	if name == "" {
		name = n.ToEmail
	}

	greeting := fmt.Sprintf(t.greeting, name)
	body := fmt.Sprintf(t.body, n.FromEmail, n.Dates)
	lines := []string{greeting, "", body}
	if c.baseURL != "" {
		lines = append(lines, "", fmt.Sprintf(t.link, c.baseURL))
	}

	htmlBody := fmt.Sprintf("<p>%s</p><p>%s</p>", html.EscapeString(greeting), html.EscapeString(body))
	if c.baseURL != "" {
		htmlBody += fmt.Sprintf(`<p><a href="%s">%s</a></p>`,
			html.EscapeString(c.baseURL), html.EscapeString(fmt.Sprintf(t.link, c.baseURL)))
	}

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       n.ToEmail,
		ReplyTo:  n.FromEmail,
		Subject:  fmt.Sprintf(t.subject, n.FromEmail),
		HtmlBody: htmlBody,
		TextBody: strings.Join(lines, "\n"),
	})
}
