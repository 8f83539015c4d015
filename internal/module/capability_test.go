package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityNames(t *testing.T) {
	require.Len(t, AllCapabilities, 13)
	for _, c := range AllCapabilities {
		assert.True(t, c.Valid(), c.String())
		parsed, err := ParseCapability(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		name    string
		want    Capability
		wantErr bool
	}{
		{"vout", CapabilityVideoOutput, false},
		{"Video-Output", CapabilityVideoOutput, false},
		{" demux ", CapabilityDecaps, false},
		{"fast_copy", CapabilityMemcpy, false},
		{"dec", CapabilityDecoder, false},
		{"teleport", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCapability(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCapability)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCapabilityValid(t *testing.T) {
	assert.False(t, Capability(0).Valid())
	assert.False(t, (CapabilityAccess | CapabilityInput).Valid())
	assert.False(t, capabilityEnd.Valid())
	assert.Contains(t, Capability(1<<30).String(), "capability(")
}

func TestCapabilitySet(t *testing.T) {
	s := NewCapabilitySet(CapabilityVideoOutput, CapabilityInterface, CapabilityVideoOutput)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(CapabilityInterface))
	assert.False(t, s.Has(CapabilityAudioOutput))
	assert.False(t, s.Has(0))
	assert.Equal(t, []Capability{CapabilityInterface, CapabilityVideoOutput}, s.List())
	assert.Equal(t, "intf,vout", s.String())
	assert.True(t, CapabilitySet(0).Empty())
}

func TestFunctionTable(t *testing.T) {
	ft, err := NewFunctionTable(
		Provide(Memcpy, FastCopyFunctions(&testCopy{})),
		Provide(Dec, DecoderFunctions(testDecoder{})),
	)
	require.NoError(t, err)
	assert.Equal(t, NewCapabilitySet(CapabilityMemcpy, CapabilityDecoder), ft.Capabilities())

	fns, ok := Lookup(ft, Memcpy)
	require.True(t, ok)
	assert.Equal(t, 2, fns.Copy(make([]byte, 2), []byte("xy")))

	_, ok = Lookup(ft, Vout)
	assert.False(t, ok)
}

func TestFunctionTableRejects(t *testing.T) {
	var nilCopy *testCopy

	tests := []struct {
		name    string
		entries []Entry
		wantErr error
	}{
		{"empty", nil, ErrInvalidDefinition},
		{"nil interface", []Entry{Provide[FastCopyFunctions](Memcpy, nil)}, ErrInvalidDefinition},
		{"typed nil", []Entry{Provide(Memcpy, FastCopyFunctions(nilCopy))}, ErrInvalidDefinition},
		{"twice", []Entry{
			Provide(Memcpy, FastCopyFunctions(&testCopy{})),
			Provide(Memcpy, FastCopyFunctions(&testCopy{})),
		}, ErrInvalidDefinition},
		{"bad key", []Entry{Provide(Cap[FastCopyFunctions]{}, FastCopyFunctions(&testCopy{}))}, ErrUnknownCapability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFunctionTable(tt.entries...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Panics(t, func() { MustFunctionTable() })
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		items   []ConfigItem
		wantErr bool
	}{
		{"empty", nil, false},
		{"layout and values", []ConfigItem{
			{Kind: ConfigPane, Text: "Video"},
			{Kind: ConfigString, Name: "display"},
			{Kind: ConfigChoose, Name: "chroma", Choices: []string{"yv12", "i420"}},
			{Kind: ConfigSpin, Name: "width", Min: 0, Max: 4096},
			{Kind: ConfigComment, Text: "restart required"},
		}, false},
		{"unknown kind", []ConfigItem{{Kind: "slider", Name: "x"}}, true},
		{"missing name", []ConfigItem{{Kind: ConfigCheck}}, true},
		{"duplicate name", []ConfigItem{{Kind: ConfigCheck, Name: "x"}, {Kind: ConfigString, Name: "x"}}, true},
		{"no choices", []ConfigItem{{Kind: ConfigRadio, Name: "x"}}, true},
		{"inverted range", []ConfigItem{{Kind: ConfigScale, Name: "x", Min: 5, Max: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema(tt.items)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandleFunctionsMismatch(t *testing.T) {
	_, err := Functions[FastCopyFunctions](nil, Memcpy)
	assert.ErrorIs(t, err, ErrCapabilityMismatch)
}

func TestMotionSelectorIndex(t *testing.T) {
	assert.Equal(t, 0, MotionSelector{}.Index())
	assert.Equal(t, 15, MotionSelector{Field: true, Average: true, Variant: 3}.Index())
	assert.Equal(t, 6, MotionSelector{Average: true, Variant: 2}.Index())
}
