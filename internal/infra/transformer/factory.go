package transformer

import (
	"fmt"

	"github.com/NewsFlash/internal/domain"
)

// GetTransformer returns the transformer registered under name.
func GetTransformer(name string) (domain.Transformer, error) {
	switch name {
	case NewsAPIName:
		return NewNewsAPITransformer(), nil
	case "dummy":
		return NewDummyTransformer(), nil
	default:
		return nil, fmt.Errorf("transformer not found: %s", name)
	}
}
