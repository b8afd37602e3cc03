package manifest

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schema constrains a fully defaulted manifest. Field names follow the json
// tags, which is how cue encodes Go values.
const schema = `
#Config: {
	engine: {
		stackDepthLimit: int & >=1 & <=65535
		verify:          bool
		trace:           bool
	}
	bench: {
		warmup:     int & >=0
		iterations: int & >=1
		parallel:   int & >=1 & <=256
	}
	results: {
		path: string & !=""
	}
	program: {
		path:  string
		count: int & >=0 & <=4294967295
	}
}
`

// Validate checks the manifest against the configuration schema.
func (m *Manifest) Validate() error {
	ctx := cuecontext.New()
	s := ctx.CompileString(schema)
	if err := s.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := s.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(m))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
