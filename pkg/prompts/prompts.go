// Package prompts builds the provider-facing prompts for drafting,
// rewriting and translating documents.
package prompts

import (
	"fmt"

	"github.com/odvcencio/inkwell/pkg/model"
)

// Prompt kinds. Each kind's system prompt can be overridden.
const (
	KindGenerate  = "generate"
	KindRewrite   = "rewrite"
	KindTranslate = "translate"
)

// Context limits for rewrite prompts, in characters.
const (
	RewriteContextSSE    = 1000
	RewriteContextNative = 3000
)

// Prompt is a rendered request: an optional system instruction and the user
// message.
type Prompt struct {
	System string
	User   string
}

// Generate renders a draft request.
func Generate(family model.Family, request string) Prompt {
	if family == model.FamilyNative {
		return Prompt{
			System: resolveOverride(KindGenerate, ""),
			User:   fmt.Sprintf(nativeGenerate, request),
		}
	}
	return Prompt{
		System: resolvePrompt(KindGenerate, generateSystem),
		User:   request,
	}
}

// Rewrite renders a selection rewrite. fullContext is the plain text of the
// whole document and is truncated per family.
func Rewrite(family model.Family, selection, fullContext, instruction string) Prompt {
	return RewriteWithLimit(family, selection, fullContext, instruction, 0)
}

// RewriteWithLimit is Rewrite with the context truncated to limit runes.
// A limit of zero or less keeps the family default.
func RewriteWithLimit(family model.Family, selection, fullContext, instruction string, limit int) Prompt {
	limit = ContextLimit(family, limit)
	if family == model.FamilyNative {
		return Prompt{
			System: resolveOverride(KindRewrite, ""),
			User:   fmt.Sprintf(nativeRewrite, truncate(fullContext, limit), selection, instruction),
		}
	}
	return Prompt{
		System: resolvePrompt(KindRewrite, rewriteSystem),
		User: fmt.Sprintf("Context:\n%s...\n\nRewrite this selection:\n\"%s\"\n\nInstruction: %s",
			truncate(fullContext, limit), selection, instruction),
	}
}

// ContextLimit returns the rewrite context budget for family, preferring a
// positive override.
func ContextLimit(family model.Family, override int) int {
	if override > 0 {
		return override
	}
	if family == model.FamilyNative {
		return RewriteContextNative
	}
	return RewriteContextSSE
}

// Translate renders a whole-document translation into language.
func Translate(family model.Family, content, language string) Prompt {
	user := fmt.Sprintf(translateBody, language, content)
	if family == model.FamilyNative {
		return Prompt{System: resolveOverride(KindTranslate, ""), User: user}
	}
	return Prompt{
		System: resolvePrompt(KindTranslate, fmt.Sprintf(translateSystem, language)),
		User:   user,
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

const generateSystem = "You are an expert ghostwriter. Return content as semantic HTML (h1, h2, p, ul, li). Do NOT use Markdown."

const rewriteSystem = "You are an expert editor. Return ONLY the rewritten HTML fragment."

const translateSystem = "You are a professional translator. Translate to %s. Maintain HTML structure."

const nativeGenerate = `You are an expert ghostwriter and thought partner.
Write a comprehensive, high-quality draft based on the following request.

IMPORTANT FORMATTING INSTRUCTIONS:
- Return the content as semantic HTML (e.g., <h1>, <h2>, <p>, <ul>, <li>, <strong>, <em>).
- Do NOT include <html>, <head>, or <body> tags.
- Do NOT use Markdown syntax (no #, ##, **, etc).
- Use a clean, engaging style.

Request: %s`

const nativeRewrite = `You are an expert editor.
I will provide a full document context (HTML) and a specific selection I want you to rewrite.

Context of the document:
"""
%s... (truncated for brevity)
"""

The specific text to rewrite is:
"""
%s
"""

Instruction for rewrite: "%s"

Return ONLY the rewritten text as valid HTML fragments.
Do not add quotes or conversational filler.
Maintain formatting tags (<b>, <i>) if appropriate.`

const translateBody = `You are a professional translator.
Translate the following HTML content into professional, high-quality %s.

Rules:
1. Maintain the original HTML structure and tags (h1, p, ul, etc.) exactly so it matches the visual layout of the original.
2. Only translate the visible text content.
3. Ensure the tone is appropriate for the context (professional/native).
4. Return ONLY the translated HTML string.
5. Do NOT use markdown code blocks (e.g., ` + "```html" + `). Just return raw HTML.

Content to translate:
"""
%s
"""`
