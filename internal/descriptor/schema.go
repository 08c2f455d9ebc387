package descriptor

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce  sync.Once
	schemaValue cue.Value
	schemaErr   error

	// validateMu serializes validation; a cue.Context is not safe for
	// concurrent use.
	validateMu sync.Mutex
)

// schema compiles the embedded schema once per process.
func schema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile descriptor schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Descriptor"))
		if err := schemaValue.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Descriptor: %w", err)
		}
	})
	return schemaValue, schemaErr
}

// validateSchema checks raw JSON against #Descriptor.
func validateSchema(data []byte) error {
	v, err := schema()
	if err != nil {
		return err
	}
	validateMu.Lock()
	defer validateMu.Unlock()
	if err := cuejson.Validate(data, v); err != nil {
		return &InvalidDescriptorError{Message: "schema", Err: flatten(err)}
	}
	return nil
}

// flatten collapses a CUE error list into one line per problem.
func flatten(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) <= 1 {
		return err
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
