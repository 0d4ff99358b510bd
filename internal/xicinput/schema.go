package xicinput

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrInvalidInput is returned when an input document does not match the
// input schema
var ErrInvalidInput = errors.New("xicinput: invalid input")

// Schema returns the JSON schema of an input document, an array of entries
func Schema() *invopop.Schema {
	r := &invopop.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	return r.Reflect([]Entry{})
}

// SchemaJSON returns the indented input schema
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}

var compiledSchema = sync.OnceValues(compileSchema)

func compileSchema() (*jsonschema.Schema, error) {
	// Convert to JSON and back to get a plain map[string]any
	schemaJSON, err := json.Marshal(Schema())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	var schemaValue any
	if err := json.Unmarshal(schemaJSON, &schemaValue); err != nil {
		return nil, fmt.Errorf("unmarshaling schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("entries.json", schemaValue); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := compiler.Compile("entries.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return compiled, nil
}

// validate checks a decoded document against the input schema
func validate(doc any) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	err = sch.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(validationMessages(verr), "; "))
}

var printer = message.NewPrinter(language.English)

// validationMessages returns the sorted, deduplicated leaf errors of err,
// each prefixed with its instance location
func validationMessages(err *jsonschema.ValidationError) []string {
	var msgs []string
	collectErrors(err, &msgs)
	slices.Sort(msgs)
	return slices.Compact(msgs)
}

func collectErrors(err *jsonschema.ValidationError, msgs *[]string) {
	if err.ErrorKind != nil && len(err.Causes) == 0 {
		msg := err.ErrorKind.LocalizedString(printer)
		if !strings.HasPrefix(msg, "$ref ") && !strings.HasPrefix(msg, "doesn't validate with") {
			path := "/" + strings.Join(err.InstanceLocation, "/")
			*msgs = append(*msgs, path+": "+msg)
		}
	}
	for _, cause := range err.Causes {
		collectErrors(cause, msgs)
	}
}
