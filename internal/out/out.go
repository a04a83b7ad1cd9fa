// Package out renders command results consistently across wacli's
// subcommands: JSON on one path, tab-aligned human text on the other.
// Maps built by the commands use snake_case keys; store records
// (chats, contacts, groups, messages) carry no json tags and encode with
// their Go field names.
package out

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/wacli/wacli/internal/errs"
)

// WriteJSON marshals v as indented JSON and writes it followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteError reports err on w, either as a JSON object (when asJSON is true)
// or as a plain "Error: ..." line, including the error kind when one was
// attached via internal/errs.
func WriteError(w io.Writer, asJSON bool, err error) error {
	if err == nil {
		return nil
	}

	kind := errs.KindOf(err)
	if asJSON {
		payload := map[string]any{
			"error": err.Error(),
		}
		if kind != errs.Unknown {
			payload["kind"] = kind.String()
		}
		return WriteJSON(w, payload)
	}

	if kind != errs.Unknown {
		_, werr := fmt.Fprintf(w, "Error [%s]: %v\n", kind, err)
		return werr
	}
	_, werr := fmt.Fprintf(w, "Error: %v\n", err)
	return werr
}
