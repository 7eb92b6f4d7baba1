package rewrite

import (
	"fmt"
	"strings"
)

// Mode selects the rewrite instruction.
type Mode string

const (
	ModeImprove      Mode = "improve"
	ModeShorten      Mode = "shorten"
	ModeExpand       Mode = "expand"
	ModeProfessional Mode = "professional"
	ModeCasual       Mode = "casual"
	ModeCustom       Mode = "custom"
)

// Modes lists every mode in menu order.
var Modes = []Mode{ModeImprove, ModeShorten, ModeExpand, ModeProfessional, ModeCasual, ModeCustom}

const defaultCustomInstruction = "Improve this."

var instructions = map[Mode]string{
	ModeImprove:      "Improve clarity, flow, and grammar.",
	ModeShorten:      "Shorten this text significantly while keeping key info.",
	ModeExpand:       "Expand on this with more detail and descriptive language.",
	ModeProfessional: "Rewrite to sound more professional and authoritative.",
	ModeCasual:       "Rewrite to sound more casual and conversational.",
}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == ModeCustom {
		return m, nil
	}
	if _, ok := instructions[m]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unknown rewrite mode %q", s)
}

// Instruction returns the prompt instruction for mode. Custom uses the
// caller's text, or a generic instruction when it is blank.
func Instruction(mode Mode, custom string) string {
	if mode == ModeCustom {
		if c := strings.TrimSpace(custom); c != "" {
			return c
		}
		return defaultCustomInstruction
	}
	if s, ok := instructions[mode]; ok {
		return s
	}
	return defaultCustomInstruction
}
