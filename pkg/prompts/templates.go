package prompts

import (
	"regexp"
	"strings"
)

// Template is a canned draft request. Bracketed upper-case words such as
// [TOPIC] are placeholders.
type Template struct {
	ID          string
	Label       string
	Description string
	Prompt      string
}

var placeholderPattern = regexp.MustCompile(`\[([A-Z]+)\]`)

var templates = []Template{
	{
		ID:          "nyt",
		Label:       "The NY Times Style",
		Description: "Journalistic, narrative & sophisticated",
		Prompt:      "Write a comprehensive article about [TOPIC] in the style of The New York Times. Use a sophisticated, journalistic tone with a strong narrative hook. Focus on nuance, multiple perspectives, and evocative descriptions. Maintain high editorial standards.",
	},
	{
		ID:          "economist",
		Label:       "The Economist Style",
		Description: "Witty, concise & authoritative",
		Prompt:      `Write an article about [TOPIC] in the style of The Economist. Use a witty, dry, and authoritative tone. Be concise, data-driven, and focus on global political/economic implications. Use the editorial "we" where appropriate.`,
	},
	{
		ID:          "wired",
		Label:       "Wired Magazine Style",
		Description: "Tech-forward, curious & edgy",
		Prompt:      `Write a feature story about [TOPIC] in the style of Wired. Focus on the intersection of technology, culture, and science. Use a futuristic, curious, and slightly edgy tone. Dive deep into the technical "how" and the cultural "why".`,
	},
	{
		ID:          "atlantic",
		Label:       "The Atlantic Style",
		Description: "Deep cultural analysis & long-form",
		Prompt:      "Write a thought-provoking essay about [TOPIC] in the style of The Atlantic. Focus on deep cultural analysis, historical context, and a strong, well-argued thesis. Use intellectual but accessible language.",
	},
	{
		ID:          "screenplay",
		Label:       "Screenplay / Script",
		Description: "Dialogue, scene headings & action",
		Prompt:      "Write a scene for a screenplay about [TOPIC]. Use standard screenplay formatting (Scene Headings, Action Lines, Character Names centered, Dialogue). Include vivid visual descriptions and natural dialogue.",
	},
	{
		ID:          "poem",
		Label:       "Poetry",
		Description: "Verses, imagery & rhythm",
		Prompt:      "Write a poem about [TOPIC]. Focus on vivid imagery, rhythm, and emotional resonance. Structure it in stanzas.",
	},
	{
		ID:          "tech_doc",
		Label:       "Technical Docs",
		Description: "API specs, guides & code examples",
		Prompt:      "Write technical documentation for [TOPIC]. Include an Overview, Prerequisites, Step-by-Step Installation/Usage guide, and Code Examples. Use a clear, objective, and technical tone.",
	},
	{
		ID:          "blog",
		Label:       "Standard Blog Post",
		Description: "SEO-friendly article structure",
		Prompt:      "Write an engaging blog post about [TOPIC]. Include a catchy title, introduction, 3 main sections with headers, and a conclusion.",
	},
	{
		ID:          "email",
		Label:       "Professional Email",
		Description: "Clear & concise outreach",
		Prompt:      "Draft a professional email to [RECIPIENT] regarding [SUBJECT]. Keep it concise, polite, and end with a clear call to action.",
	},
	{
		ID:          "summary",
		Label:       "Summarize Document",
		Description: "Bullet points & insights",
		Prompt:      "Analyze the attached content and provide a structured summary. Include key takeaways, main arguments, and actionable insights.",
	},
	{
		ID:          "social",
		Label:       "Social Thread",
		Description: "Viral social media content",
		Prompt:      "Create a 5-part social media thread about [TOPIC]. Use a hook for the first post, provide value in the middle, and end with engagement.",
	},
}

// Templates returns the built-in templates in display order.
func Templates() []Template {
	return append([]Template(nil), templates...)
}

// LookupTemplate finds a template by id.
func LookupTemplate(id string) (Template, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Placeholders lists the distinct placeholder names in the template, in
// order of first appearance.
func (t Template) Placeholders() []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(t.Prompt, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Fill substitutes placeholders from values (keys are matched
// case-insensitively). Unknown placeholders are left as-is.
func (t Template) Fill(values map[string]string) string {
	normalized := make(map[string]string, len(values))
	for k, v := range values {
		normalized[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return placeholderPattern.ReplaceAllStringFunc(t.Prompt, func(m string) string {
		if v, ok := normalized[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// SuggestedPrompts are starting points offered when no prompt is given.
var SuggestedPrompts = []string{
	"Draft a blog post about the future of AI",
	"Write a professional email declining a job offer",
	"Create a project proposal for a new mobile app",
	"Summarize the key takeaways from the attached image",
}
