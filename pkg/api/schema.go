package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxBodyBytes caps request payload size for all /v1 endpoints.
const maxBodyBytes = 1 << 20

// MustSchema compiles a JSON Schema (draft 2020-12) or panics. Meant for
// package-level schema constants compiled once at startup.
func MustSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("api: schema resource %s: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("api: compile schema %s: %v", name, err))
	}
	return sch
}

// DecodeValid reads the request body, validates it against sch, and decodes
// it into dst. Failures come back as typed *Error values carrying the
// envelope code.
func DecodeValid(r *http.Request, sch *jsonschema.Schema, dst any) *Error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return Errorf(http.StatusBadRequest, CodeValidationError, "read body: %v", err)
	}
	if len(raw) == 0 {
		return Errorf(http.StatusBadRequest, CodeMissingPayload, "request body is required")
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return Errorf(http.StatusBadRequest, CodeValidationError, "body is not valid JSON")
	}
	if sch != nil {
		if err := sch.Validate(value); err != nil {
			return Errorf(http.StatusBadRequest, CodeValidationError, "%s", schemaMessage(err))
		}
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			return Errorf(http.StatusBadRequest, CodeValidationError, "decode body: %v", err)
		}
	}
	return nil
}

// schemaMessage flattens a jsonschema validation error to its most specific
// cause so clients see "missing properties: 'email'" rather than the full tree.
func schemaMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}
