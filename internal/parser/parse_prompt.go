package parser

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/drivescene/pkg/core"
)

// ParsePrompts decodes what the decision client exchanged for one frame.
func (p *Parser) ParsePrompts(payload []byte) (core.FramePrompts, error) {
	var prompts core.FramePrompts
	if err := json.Unmarshal(payload, &prompts); err != nil {
		return prompts, fmt.Errorf("error unmarshalling prompts: %w", err)
	}
	if prompts.Frame < 0 {
		return prompts, fmt.Errorf("%w: negative frame %d", ErrInvalidPayload, prompts.Frame)
	}
	if prompts.EditTimes < 0 {
		return prompts, fmt.Errorf("%w: negative edit count %d", ErrInvalidPayload, prompts.EditTimes)
	}
	return prompts, nil
}
