package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
)

const base64LineLength = 76

type message struct {
	From           string
	To             []string
	Subject        string
	Date           time.Time
	Body           string
	AttachmentName string
}

// buildMessage renders a multipart/mixed message: a quoted-printable plain
// text body followed by the same text as a base64 text/markdown attachment.
func buildMessage(m message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := func(key, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}

	header("From", m.From)
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", m.Date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	buf.WriteString("\r\n")

	body, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}

	qp := quotedprintable.NewWriter(body)
	if _, err := qp.Write([]byte(m.Body)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	if m.AttachmentName != "" {
		attachment, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType("text/markdown", map[string]string{"charset": "utf-8", "name": m.AttachmentName})},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": m.AttachmentName})},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}

		encoded := base64.StdEncoding.EncodeToString([]byte(m.Body))
		for len(encoded) > base64LineLength {
			if _, err := attachment.Write([]byte(encoded[:base64LineLength] + "\r\n")); err != nil {
				return nil, err
			}
			encoded = encoded[base64LineLength:]
		}
		if _, err := attachment.Write([]byte(encoded + "\r\n")); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
