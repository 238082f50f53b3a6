package bus_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Envelope(t *testing.T) {
	data, err := bus.Encode(bus.Message{
		Type:    bus.TypeReparentInstance,
		Payload: &bus.ReparentInstance{ID: "a", ParentID: "root", Index: 2},
		Origin:  "authoring",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"reparentInstance","payload":{"id":"a","parentId":"root","index":2},"origin":"authoring"}`, string(data))
}

func TestDecode_PayloadByType(t *testing.T) {
	m, err := bus.Decode([]byte(`{"type":"insertInstance","payload":{"instance":{"id":"x","component":"Box","children":["hi"]},"target":{"parentId":"root","index":0}}}`))
	require.NoError(t, err)

	p, ok := m.Payload.(*bus.InsertInstance)
	require.True(t, ok)
	assert.Equal(t, "x", p.Instance.ID)
	assert.Equal(t, []domain.Child{domain.TextChild("hi")}, p.Instance.Children)
	assert.Equal(t, &domain.Target{ParentID: "root", Index: 0}, p.Target)
	require.NoError(t, bus.Validate(m))
}

func TestDecode_EmptyPayloads(t *testing.T) {
	for _, raw := range []string{
		`{"type":"unselectInstance"}`,
		`{"type":"unselectInstance","payload":null}`,
		`{"type":"unselectInstance","payload":{}}`,
	} {
		m, err := bus.Decode([]byte(raw))
		require.NoError(t, err, raw)
		assert.IsType(t, &bus.UnselectInstance{}, m.Payload)
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := bus.Decode([]byte(`{"type":"nope","payload":{}}`))
	assert.ErrorIs(t, err, bus.ErrUnknownType)

	_, err = bus.Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = bus.Decode([]byte(`{"type":"deleteInstance","payload":{"id":7}}`))
	assert.Error(t, err)
}

func TestTreeChanged_PatchIsInlineJSON(t *testing.T) {
	data, err := bus.Encode(bus.New(&bus.TreeChanged{Version: 2, Base: 1, Patch: json.RawMessage(`{"root":"r"}`)}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"patch":{"root":"r"}`)

	m, err := bus.Decode(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"root":"r"}`, string(m.Payload.(*bus.TreeChanged).Patch))
}

func TestEveryTypeRoundTrips(t *testing.T) {
	for _, typ := range bus.Types() {
		data, err := json.Marshal(map[string]any{"type": typ, "payload": map[string]any{}})
		require.NoError(t, err)
		m, err := bus.Decode(data)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, m.Payload.MessageType())
	}
	assert.Len(t, bus.Types(), 18)
}
