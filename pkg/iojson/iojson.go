// iojson are utilities for writing JSON output from a command line
// interface perspective.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteLine writes obj as a single compact JSON line, suitable for
// line-oriented consumers (status bars, jq pipelines).
func WriteLine(w io.Writer, obj any) error {
	bits, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal json line: %w", err)
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// WriteWith writes obj as indented JSON to w, reporting marshal
// failures on ew.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		_, werr := fmt.Fprintf(ew, "error marshaling in iojson.Write: %v\n", err)
		return werr
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write calls WriteWith with [os.Stdout] and [os.Stderr]
func Write(obj any) error {
	return WriteWith(os.Stdout, os.Stderr, obj)
}
