package exportbridge

import (
	"encoding/json"
	"io"

	"github.com/invopop/jsonschema"

	"pdmrelease/internal/errs"
)

// ContractSchemas describes the JSON a bridge implementation receives on
// POST /export and returns from both transports.
func ContractSchemas() map[string]*jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	request := reflector.Reflect(&httpExportRequest{})
	request.Title = "ExportRequest"
	result := reflector.Reflect(&wireResult{})
	result.Title = "ExportResult"

	return map[string]*jsonschema.Schema{
		"request": request,
		"result":  result,
	}
}

func WriteContractSchemas(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ContractSchemas()); err != nil {
		return errs.Wrap(err, "encode bridge schemas")
	}
	return nil
}
