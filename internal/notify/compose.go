package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"math"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/webitel/rocrate-exporter/internal/model"
)

const (
	subjectReady  = "Your RO-Crate download is ready"
	subjectFailed = "Your RO-Crate download could not be completed"
)

var (
	//go:embed templates/result.html
	htmlSource string
	//go:embed templates/result.txt
	textSource string

	funcs = map[string]any{
		"plural": func(n int) string {
			if n == 1 {
				return ""
			}
			return "s"
		},
	}

	htmlTmpl = htmltemplate.Must(htmltemplate.New("result.html").Funcs(funcs).Parse(htmlSource))
	textTmpl = texttemplate.Must(texttemplate.New("result.txt").Funcs(funcs).Parse(textSource))
)

// Params is everything a result email is rendered from. An empty DownloadURL
// means no archive was delivered.
type Params struct {
	To           string
	DownloadURL  string
	FileCount    int
	TotalSize    int64
	MissingFiles []model.FailedFile
	LinkTTL      time.Duration
}

type Message struct {
	Subject string
	HTML    string
	Text    string
}

type view struct {
	Params
	Failed     bool
	Link       htmltemplate.URL
	Size       string
	ExpiryText string
}

// Compose renders the subject with HTML and plain text bodies from one input.
func Compose(p Params) (Message, error) {
	v := view{
		Params:     p,
		Failed:     p.DownloadURL == "",
		Link:       htmltemplate.URL(p.DownloadURL),
		Size:       FormatFileSize(p.TotalSize),
		ExpiryText: formatTTL(p.LinkTTL),
	}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, v); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}
	if err := textTmpl.Execute(&text, v); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}

	subject := subjectReady
	if v.Failed {
		subject = subjectFailed
	}
	return Message{
		Subject: subject,
		HTML:    strings.TrimSpace(html.String()),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatFileSize renders bytes with 1024 based units and at most two decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

func formatTTL(d time.Duration) string {
	if d <= 0 {
		d = 24 * time.Hour
	}
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return strconv.Itoa(h) + " hours"
	}
	m := int(d.Round(time.Minute) / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return strconv.Itoa(m) + " minutes"
}
