package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// MapEntry is one key/value pair from a streamed top-level JSON object.
type MapEntry[T any] struct {
	Key string
	Val T
}

// DecodeJSONMap streams the entries of a top-level JSON object of the form
// {"id1": {...}, "id2": {...}} to a channel. The league-wide player dumps
// arrive as a single object with thousands of keys; streaming keeps only
// one entry decoded at a time. Caller must consume the returned channel.
// Both channels are closed when processing completes.
func DecodeJSONMap[T any](ctx context.Context, r io.Reader) (<-chan MapEntry[T], <-chan error) {
	outCh := make(chan MapEntry[T], 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}
		delim, ok := tok.(json.Delim)
		if !ok || delim != '{' {
			errCh <- eris.Errorf("json: expected '{', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			keyTok, err := decoder.Token()
			if err != nil {
				errCh <- eris.Wrap(err, "json: read key")
				return
			}
			key, ok := keyTok.(string)
			if !ok {
				errCh <- eris.Errorf("json: expected object key, got %v", keyTok)
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrapf(err, "json: decode entry %q", key)
				return
			}

			select {
			case outCh <- MapEntry[T]{Key: key, Val: item}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		// Consume closing brace.
		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}
