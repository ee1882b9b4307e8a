package asset

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"
)

// URI renders the icon as a data URI.
func (i *Icon) URI() string {
	if i == nil || len(i.Data) == 0 {
		return ""
	}
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

func (i *Icon) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MIMEType string `json:"mimeType"`
		URI      string `json:"uri"`
	}{i.MIMEType, i.URI()})
}

// Glyph is the text fallback shown when a record has no icon.
func Glyph(ticker string) string {
	t := NormalizeTicker(ticker)
	if t == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(t)
	return string(r)
}
