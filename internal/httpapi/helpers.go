package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/sentineltrace/threat-intel/internal/model"
)

func fmtValidationError(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, model.ErrValidation)...)
}

func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
