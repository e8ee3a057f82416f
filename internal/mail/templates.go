package mail

import (
	"fmt"
	"html/template"
	"strings"
)

var resetTmpl = template.Must(template.New("reset").Parse(`
<div style="font-family:Arial,Helvetica,sans-serif;max-width:640px;margin:auto;line-height:1.6">
  <h2 style="margin-bottom:8px">Reset your password</h2>
  <p>Hi {{.Name}},</p>
  <p>We received a request to reset the password for your Tax Expert account.</p>
  <p><a href="{{.URL}}" style="display:inline-block;padding:10px 16px;text-decoration:none;border-radius:6px;border:1px solid #222">Choose a new password</a></p>
  <p>This link is valid for one hour and can be used once.</p>
  <hr style="border:none;border-top:1px solid #eee;margin:24px 0" />
  <p style="color:#666;font-size:12px">If you did not request a reset, you can safely ignore this email.</p>
</div>`))

var completionTmpl = template.Must(template.New("completion").Parse(`
<div style="font-family:Arial,Helvetica,sans-serif;max-width:640px;margin:auto;line-height:1.6">
  <h2 style="margin-bottom:8px">Your tax return is completed</h2>
  <p>Hi {{.Name}},</p>
  <p>Your tax return for this season has been marked <b>Completed</b>.</p>
  <p>You can sign in to your dashboard to view the status and any documents:</p>
  <p><a href="{{.URL}}" style="display:inline-block;padding:10px 16px;text-decoration:none;border-radius:6px;border:1px solid #222">Open Dashboard</a></p>
  <hr style="border:none;border-top:1px solid #eee;margin:24px 0" />
  <p style="color:#666;font-size:12px">If you did not expect this email, please ignore it.</p>
</div>`))

type emailData struct {
	Name string
	URL  string
}

func resetEmailHTML(name, baseURL, token string) string {
	return render(resetTmpl, emailData{
		Name: displayName(name),
		URL:  fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(baseURL, "/"), token),
	})
}

func completionEmailHTML(name, baseURL string) string {
	return render(completionTmpl, emailData{
		Name: displayName(name),
		URL:  strings.TrimRight(baseURL, "/") + "/login",
	})
}

func render(t *template.Template, data emailData) string {
	var b strings.Builder
	// Templates are parsed at init; execution over a plain struct cannot fail.
	_ = t.Execute(&b, data)
	return b.String()
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}
