// Package attachment turns uploaded files into the data URIs that are
// persisted with work items.
package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxBytes = 5 << 20

var (
	ErrEmpty    = errors.New("attachment is empty")
	ErrTooLarge = errors.New("attachment exceeds the size limit")
	ErrBadURI   = errors.New("malformed data URI")
)

// ConversionError names the work and field whose attachment failed.
type ConversionError struct {
	Item  string
	Field string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("attachment %s of work %s: %v", e.Field, e.Item, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

type Encoder struct {
	MaxBytes int64
}

func NewEncoder(maxBytes int64) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Encoder{MaxBytes: maxBytes}
}

// Normalize returns the encoded form of a. Encoded and None pass through.
func (e *Encoder) Normalize(a domain.Attachment) (domain.Attachment, error) {
	if a.Kind() != domain.AttachmentRaw {
		return a, nil
	}
	data := a.Data()
	if len(data) == 0 {
		return a, ErrEmpty
	}
	if e.MaxBytes > 0 && int64(len(data)) > e.MaxBytes {
		return a, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), e.MaxBytes)
	}
	return domain.EncodedAttachment(dataURI(a.MIME(), data)), nil
}

// EncodeItems encodes every attachment of every item concurrently. The first
// failure cancels the rest and no items are returned.
func (e *Encoder) EncodeItems(ctx context.Context, items []domain.WorkItem) ([]domain.WorkItem, error) {
	out := make([]domain.WorkItem, len(items))
	copy(out, items)
	g, ctx := errgroup.WithContext(ctx)
	for i := range out {
		for _, na := range out[i].Attachments() {
			id := out[i].ID
			if na.Attachment.Kind() != domain.AttachmentRaw {
				continue
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				enc, err := e.Normalize(*na.Attachment)
				if err != nil {
					return &ConversionError{Item: id, Field: na.Field, Err: err}
				}
				*na.Attachment = enc
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DisplayURL is an openable reference for a, or "" when there is none.
func DisplayURL(a domain.Attachment) string {
	switch a.Kind() {
	case domain.AttachmentEncoded:
		return a.URI()
	case domain.AttachmentRaw:
		return dataURI(a.MIME(), a.Data())
	}
	return ""
}

// ParseDataURI splits a base64 data URI into its MIME type and payload.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrBadURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrBadURI
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are accepted", ErrBadURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadURI, err)
	}
	return mime, data, nil
}

func dataURI(mime string, data []byte) string {
	if mime == "" {
		mime = strings.ReplaceAll(http.DetectContentType(data), " ", "")
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
