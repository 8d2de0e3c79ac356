package attachment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	enc := NewEncoder(16)

	t.Run("raw becomes a data URI", func(t *testing.T) {
		out, err := enc.Normalize(domain.RawAttachment("a.pdf", "application/pdf", []byte("hello")))
		require.NoError(t, err)
		assert.Equal(t, domain.AttachmentEncoded, out.Kind())
		assert.Equal(t, "data:application/pdf;base64,aGVsbG8=", out.URI())
	})

	t.Run("mime is sniffed when missing", func(t *testing.T) {
		out, err := enc.Normalize(domain.RawAttachment("a.txt", "", []byte("plain text")))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out.URI(), "data:text/plain;charset=utf-8;base64,"), out.URI())
	})

	t.Run("encoded is idempotent", func(t *testing.T) {
		in := domain.EncodedAttachment("data:image/png;base64,AAAA")
		out, err := enc.Normalize(in)
		require.NoError(t, err)
		assert.True(t, in.Equal(out))
		again, err := enc.Normalize(out)
		require.NoError(t, err)
		assert.True(t, out.Equal(again))
	})

	t.Run("none stays none", func(t *testing.T) {
		out, err := enc.Normalize(domain.NoAttachment())
		require.NoError(t, err)
		assert.True(t, out.IsNone())
	})

	t.Run("empty and oversized payloads fail", func(t *testing.T) {
		_, err := enc.Normalize(domain.RawAttachment("e", "text/plain", nil))
		assert.ErrorIs(t, err, ErrEmpty)
		_, err = enc.Normalize(domain.RawAttachment("big", "text/plain", make([]byte, 17)))
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestEncodeItems(t *testing.T) {
	enc := NewEncoder(16)
	items := []domain.WorkItem{
		{ID: "a", WorkImage: domain.RawAttachment("p.png", "image/png", []byte{1, 2, 3})},
		{ID: "b", DetailedReport: domain.RawAttachment("r.pdf", "application/pdf", []byte("report")), WorkImage: domain.EncodedAttachment("data:image/png;base64,AAAA")},
	}

	out, err := enc.EncodeItems(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, it := range out {
		for _, na := range it.Attachments() {
			assert.NotEqual(t, domain.AttachmentRaw, na.Attachment.Kind(), na.Field)
		}
	}
	assert.Equal(t, "data:application/pdf;base64,cmVwb3J0", out[1].DetailedReport.URI())
	assert.Equal(t, domain.AttachmentRaw, items[0].WorkImage.Kind())
}

func TestEncodeItems_FailFast(t *testing.T) {
	enc := NewEncoder(16)
	items := []domain.WorkItem{
		{ID: "ok", WorkImage: domain.RawAttachment("p.png", "image/png", []byte{1})},
		{ID: "bad", CouncilResolution: domain.RawAttachment("c.pdf", "application/pdf", nil)},
	}

	out, err := enc.EncodeItems(context.Background(), items)
	assert.Nil(t, out)
	var conv *ConversionError
	require.True(t, errors.As(err, &conv))
	assert.Equal(t, "bad", conv.Item)
	assert.Equal(t, "councilResolution", conv.Field)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDisplayURLAndParse(t *testing.T) {
	assert.Empty(t, DisplayURL(domain.NoAttachment()))
	assert.Equal(t, "https://x/y.pdf", DisplayURL(domain.EncodedAttachment("https://x/y.pdf")))

	url := DisplayURL(domain.RawAttachment("n", "text/plain", []byte("hi")))
	mime, data, err := ParseDataURI(url)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
	assert.Equal(t, []byte("hi"), data)

	_, _, err = ParseDataURI("https://x")
	assert.ErrorIs(t, err, ErrBadURI)
	_, _, err = ParseDataURI("data:text/plain,hi")
	assert.ErrorIs(t, err, ErrBadURI)
}
