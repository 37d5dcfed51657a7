package fetcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPlayerRecord struct {
	FullName string `json:"full_name"`
	Team     string `json:"team"`
}

func TestDecodeJSONMap(t *testing.T) {
	input := `{
		"4046": {"full_name": "Patrick Mahomes", "team": "KC"},
		"6794": {"full_name": "Justin Jefferson", "team": "MIN"},
		"9509": {"full_name": "Bijan Robinson", "team": "ATL"}
	}`

	ch, errCh := DecodeJSONMap[testPlayerRecord](context.Background(), strings.NewReader(input))

	entries := make(map[string]testPlayerRecord)
	for e := range ch {
		entries[e.Key] = e.Val
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, entries, 3)
	assert.Equal(t, "Patrick Mahomes", entries["4046"].FullName)
	assert.Equal(t, "KC", entries["4046"].Team)
	assert.Equal(t, "Justin Jefferson", entries["6794"].FullName)
	assert.Equal(t, "Bijan Robinson", entries["9509"].FullName)
}

func TestDecodeJSONMap_Empty(t *testing.T) {
	ch, errCh := DecodeJSONMap[testPlayerRecord](context.Background(), strings.NewReader(`{}`))

	var count int
	for range ch {
		count++
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Zero(t, count)
}

func TestDecodeJSONMap_EmptyInput(t *testing.T) {
	ch, errCh := DecodeJSONMap[testPlayerRecord](context.Background(), strings.NewReader(""))

	var count int
	for range ch {
		count++
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Zero(t, count)
}

func TestDecodeJSONMap_ArrayInput(t *testing.T) {
	input := `[{"full_name":"not a map"}]`
	ch, errCh := DecodeJSONMap[testPlayerRecord](context.Background(), strings.NewReader(input))

	for range ch { //nolint:revive // drain
	}

	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "expected '{'")
}

func TestDecodeJSONMap_EntryDecodeError(t *testing.T) {
	// Second entry's value is a bare string where an object is expected.
	input := `{"4046": {"full_name": "Patrick Mahomes"}, "9999": 12`
	ch, errCh := DecodeJSONMap[testPlayerRecord](context.Background(), strings.NewReader(input))

	var decoded int
	for range ch {
		decoded++
	}
	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	assert.Equal(t, 1, decoded, "entries before the bad one still stream")
	require.Error(t, gotErr)
}

func TestDecodeJSONMap_Truncated(t *testing.T) {
	input := `{"4046": {"full_name": "Patrick Mahomes", "team": "KC"}`
	ch, errCh := DecodeJSONMap[testPlayerRecord](context.Background(), strings.NewReader(input))

	var decoded int
	for range ch {
		decoded++
	}
	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	assert.Equal(t, 1, decoded)
	require.Error(t, gotErr, "missing closing brace surfaces as an error")
}

func TestDecodeJSONMap_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("{")
	for i := range 10000 {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`"p` + string(rune('a'+i%26)) + `": {"full_name":"filler"}`)
	}
	sb.WriteString("}")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	ch, errCh := DecodeJSONMap[testPlayerRecord](ctx, strings.NewReader(sb.String()))

	for range ch { //nolint:revive // drain
	}

	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "context")
	}
}
