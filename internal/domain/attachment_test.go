package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentJSON(t *testing.T) {
	w := WorkItem{
		ID:        "w1",
		Cost:      decimal.RequireFromString("1250.50"),
		WorkImage: EncodedAttachment("data:image/png;base64,AAAA"),
	}
	b, err := json.Marshal(w)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "data:image/png;base64,AAAA", raw["workImage"])
	assert.Nil(t, raw["detailedReport"])
	assert.Equal(t, "1250.5", raw["cost"])

	var back WorkItem
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.WorkImage.Equal(w.WorkImage))
	assert.True(t, back.DetailedReport.IsNone())
	assert.True(t, back.Cost.Equal(w.Cost))
}

func TestRawAttachmentRefusesSerialization(t *testing.T) {
	w := WorkItem{ID: "w1", CommitteeReport: RawAttachment("c.pdf", "application/pdf", []byte("x"))}
	_, err := json.Marshal(w)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotEncoded))
}

func TestCRLabel(t *testing.T) {
	cr := "CR-1"
	assert.Equal(t, "CR-1", WorkItem{CRNumber: &cr}.CRLabel())
	assert.Equal(t, "", WorkItem{}.CRLabel())
}
