package domain

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrNotEncoded is returned when a raw attachment reaches serialization.
var ErrNotEncoded = errors.New("attachment must be encoded before it is persisted")

type AttachmentKind int

const (
	AttachmentNone AttachmentKind = iota
	AttachmentRaw
	AttachmentEncoded
)

func (k AttachmentKind) String() string {
	switch k {
	case AttachmentRaw:
		return "raw"
	case AttachmentEncoded:
		return "encoded"
	default:
		return "none"
	}
}

// Attachment is None, Raw (uploaded bytes) or Encoded (a data URI or URL).
// The zero value is None.
type Attachment struct {
	kind AttachmentKind
	name string
	mime string
	data []byte
	uri  string
}

func NoAttachment() Attachment { return Attachment{} }

func RawAttachment(name, mime string, data []byte) Attachment {
	return Attachment{kind: AttachmentRaw, name: name, mime: mime, data: data}
}

func EncodedAttachment(uri string) Attachment {
	if uri == "" {
		return Attachment{}
	}
	return Attachment{kind: AttachmentEncoded, uri: uri}
}

func (a Attachment) Kind() AttachmentKind { return a.kind }
func (a Attachment) IsNone() bool         { return a.kind == AttachmentNone }
func (a Attachment) Name() string         { return a.name }
func (a Attachment) MIME() string         { return a.mime }
func (a Attachment) Data() []byte         { return a.data }
func (a Attachment) URI() string          { return a.uri }

// Equal compares attachments by content.
func (a Attachment) Equal(b Attachment) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case AttachmentRaw:
		return a.name == b.name && a.mime == b.mime && bytes.Equal(a.data, b.data)
	case AttachmentEncoded:
		return a.uri == b.uri
	default:
		return true
	}
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AttachmentEncoded:
		return json.Marshal(a.uri)
	case AttachmentRaw:
		return nil, ErrNotEncoded
	default:
		return []byte("null"), nil
	}
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Attachment{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = EncodedAttachment(s)
	return nil
}
