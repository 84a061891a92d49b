package i18n

import (
	"html"
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type codeStrings struct {
	Subject string
	Heading string
	Intro   string
	Outro   string
}

type emailStrings struct {
	Greeting    string
	DefaultName string
	Expiry      string
	Ignore      string
	Signature   string

	Verification   codeStrings
	PasswordReset  codeStrings
	ChangePassword codeStrings
}

var emailTranslations = map[string]emailStrings{
	"en": {
		Greeting:    "Hi {name},",
		DefaultName: "there",
		Expiry:      "This code will expire in {minutes} minutes.",
		Ignore:      "If you didn't request this, you can safely ignore this email.",
		Signature:   "The Follow Mate Team",

		Verification: codeStrings{
			Subject: "Verify your Follow Mate account",
			Heading: "Confirm your email",
			Intro:   "Use the code below to verify your Follow Mate account:",
			Outro:   "Enter this code in the app to finish creating your account.",
		},
		PasswordReset: codeStrings{
			Subject: "Reset your Follow Mate password",
			Heading: "Reset your password",
			Intro:   "We received a request to reset your password. Enter the code below in the app to continue:",
			Outro:   "Your password stays the same until you choose a new one.",
		},
		ChangePassword: codeStrings{
			Subject: "Change your Follow Mate password",
			Heading: "Confirm your password change",
			Intro:   "Use the code below to confirm that you want to change your password:",
			Outro:   "Enter this code in your account settings to set a new password.",
		},
	},
	"de": {
		Greeting:    "Hallo {name},",
		DefaultName: "zusammen",
		Expiry:      "Dieser Code ist {minutes} Minuten gültig.",
		Ignore:      "Wenn Sie dies nicht angefordert haben, können Sie diese E-Mail ignorieren.",
		Signature:   "Ihr Follow Mate Team",

		Verification: codeStrings{
			Subject: "Bestätigen Sie Ihr Follow Mate Konto",
			Heading: "E-Mail bestätigen",
			Intro:   "Verwenden Sie den folgenden Code, um Ihr Follow Mate Konto zu bestätigen:",
			Outro:   "Geben Sie den Code in der App ein, um die Registrierung abzuschließen.",
		},
		PasswordReset: codeStrings{
			Subject: "Follow Mate Passwort zurücksetzen",
			Heading: "Passwort zurücksetzen",
			Intro:   "Wir haben eine Anfrage zum Zurücksetzen Ihres Passworts erhalten. Geben Sie den folgenden Code in der App ein:",
			Outro:   "Ihr Passwort bleibt unverändert, bis Sie ein neues festlegen.",
		},
		ChangePassword: codeStrings{
			Subject: "Follow Mate Passwort ändern",
			Heading: "Passwortänderung bestätigen",
			Intro:   "Verwenden Sie den folgenden Code, um die Änderung Ihres Passworts zu bestätigen:",
			Outro:   "Geben Sie den Code in den Kontoeinstellungen ein, um ein neues Passwort festzulegen.",
		},
	},
}

func emailStringsForLocale(locale string) emailStrings {
	key := NormalizeLocale(locale)
	if val, ok := emailTranslations[key]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func renderTemplate(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}

	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

func VerificationEmail(locale, name, code string, minutes int) EmailContent {
	t := emailStringsForLocale(locale)
	return codeEmail(t, t.Verification, name, code, minutes)
}

func PasswordResetEmail(locale, name, code string, minutes int) EmailContent {
	t := emailStringsForLocale(locale)
	return codeEmail(t, t.PasswordReset, name, code, minutes)
}

func ChangePasswordEmail(locale, name, code string, minutes int) EmailContent {
	t := emailStringsForLocale(locale)
	return codeEmail(t, t.ChangePassword, name, code, minutes)
}

func codeEmail(t emailStrings, c codeStrings, name, code string, minutes int) EmailContent {
	if strings.TrimSpace(name) == "" {
		name = t.DefaultName
	}
	greeting := renderTemplate(t.Greeting, map[string]string{"name": name})
	expiry := renderTemplate(t.Expiry, map[string]string{"minutes": strconv.Itoa(minutes)})

	text := strings.Join([]string{
		greeting,
		"",
		c.Intro,
		"",
		code,
		"",
		c.Outro,
		"",
		expiry + " " + t.Ignore,
		"",
		"- " + t.Signature,
	}, "\n")

	htmlGreeting := renderTemplate(t.Greeting, map[string]string{"name": html.EscapeString(name)})
	body := "<div style=\"font-family:system-ui,sans-serif;color:#0f172a;background:#f8fafc;padding:32px;\">" +
		"<div style=\"max-width:480px;margin:0 auto;background:#ffffff;border-radius:24px;padding:32px;\">" +
		"<h1 style=\"font-size:24px;margin:0 0 8px 0;\">" + html.EscapeString(c.Heading) + "</h1>" +
		"<p>" + htmlGreeting + "</p>" +
		"<p>" + html.EscapeString(c.Intro) + "</p>" +
		"<div style=\"font-size:28px;letter-spacing:8px;font-weight:700;margin:24px 0;\">" + html.EscapeString(code) + "</div>" +
		"<p>" + html.EscapeString(c.Outro) + "</p>" +
		"<p style=\"font-size:13px;color:#64748b;\">" + html.EscapeString(expiry+" "+t.Ignore) + "</p>" +
		"<p style=\"font-size:13px;color:#64748b;\">" + html.EscapeString(t.Signature) + "</p>" +
		"</div></div>"

	return EmailContent{Subject: c.Subject, Text: text, HTML: body}
}
