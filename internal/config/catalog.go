package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Model describes a selectable model.
type Model struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"desc"`
}

// DisplayName returns the name, falling back to the id.
func (m Model) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// CustomMode is the mode name used for ad-hoc instructions set with /system.
const CustomMode = "custom"

// builtinModeOrder is the display order of the built-in modes.
var builtinModeOrder = []string{"core", "quant", "debate"}

// DefaultModels returns the built-in model list.
func DefaultModels() []Model {
	return []Model{
		{
			ID:          "gemini-3-pro-preview",
			Name:        "Gemini 3.0 Pro (Preview)",
			Description: "Newest reasoning model. Slower, but smartest.",
		},
		{
			ID:          "gemini-2.5-flash",
			Name:        "Gemini 2.5 Flash",
			Description: "Current speed champion. Best for coding loops.",
		},
		{
			ID:          "gemini-1.5-pro",
			Name:        "Gemini 1.5 Pro",
			Description: "Reliable legacy stable version.",
		},
	}
}

// DefaultModes returns a fresh copy of the built-in system instruction templates.
func DefaultModes() map[string]string {
	return map[string]string{
		"core": "You are a highly efficient and concise terminal interface specializing in **Coding, Philosophy, and Quantitative Finance**. " +
			"**Strictly omit all greetings, conversational filler, and introductory/concluding remarks.** Respond with utmost accuracy. " +
			"Format all output using **Markdown**. Prioritize **bullet points and tables** over long paragraphs for quick terminal scanning. " +
			"If a query is ambiguous, state the critical assumption made to proceed. When possible, frame concepts by linking them to analogous structures in your other two fields of expertise. " +
			"When asked specific knowledge, ask the user to confirm the set of instructions the agent is about to do.",
		"quant": "You are a specialized **Quantitative Analyst** and code generation engine. Your primary goal is to provide **executable Python code** for financial models, statistical tests, and data manipulation. " +
			"**Strictly adhere to a code-first output structure:** 1) Output the complete, runnable code block immediately. 2) Follow the code with a brief explanation detailing the model's assumptions and the interpretation of the output metrics (e.g., p-values, Sharpe ratios). " +
			"Use **LaTeX** for mathematical notation when discussing theory (e.g., $E[R] = \\alpha + \\beta R_m$) and emphasize **risk, volatility (\\sigma), and efficiency** in all analyses. Omit all conversational filler.",
		"debate": "You are a specialized **Philosophical Debater** and Socratic guide. Your tone must be rigorous, exploratory, and intellectually challenging. " +
			"**Always structure your response as follows:** 1) Identify and explicitly state the core **Axiom(s)** or hidden assumption(s) in the user's query. 2) Present the primary arguments using distinct **Markdown headings** (e.g., '### Historical Context' or '### Logical Counterpoint'). 3) Conclude by posing a single, high-leverage Socratic counter-question to drive further inquiry. " +
			"Use historical context and relevant thinkers to substantiate claims. Omit all conversational filler.",
	}
}

// Catalog is the immutable set of models and modes handed to the agent.
// The zero value is not usable; build one with NewCatalog or DefaultCatalog.
type Catalog struct {
	agentName   string
	models      []Model
	modes       map[string]string
	modeOrder   []string
	defaultMode string
}

// NewCatalog validates and copies its inputs.
func NewCatalog(agentName string, models []Model, modes map[string]string, defaultMode string) (Catalog, error) {
	if len(models) == 0 {
		return Catalog{}, &ConfigError{Msg: "no models configured"}
	}
	if len(modes) == 0 {
		return Catalog{}, &ConfigError{Msg: "no modes configured"}
	}
	if agentName == "" {
		agentName = "Aleph"
	}

	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if m.ID == "" {
			return Catalog{}, &ConfigError{Msg: "model with empty id"}
		}
		if seen[m.ID] {
			return Catalog{}, &ConfigError{Msg: fmt.Sprintf("duplicate model id %q", m.ID)}
		}
		seen[m.ID] = true
	}

	c := Catalog{
		agentName: agentName,
		models:    slices.Clone(models),
		modes:     make(map[string]string, len(modes)),
	}
	for name, instruction := range modes {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == CustomMode {
			return Catalog{}, &ConfigError{Msg: fmt.Sprintf("mode name %q is reserved", CustomMode)}
		}
		c.modes[name] = instruction
	}
	c.modeOrder = orderModes(c.modes)

	if defaultMode == "" {
		defaultMode = c.modeOrder[0]
	}
	defaultMode = strings.ToLower(defaultMode)
	if _, ok := c.modes[defaultMode]; !ok {
		return Catalog{}, &ConfigError{Msg: fmt.Sprintf("default_mode %q is not a configured mode", defaultMode)}
	}
	c.defaultMode = defaultMode
	return c, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	c, err := NewCatalog("Aleph", DefaultModels(), DefaultModes(), "core")
	if err != nil {
		panic(err)
	}
	return c
}

// orderModes lists built-in modes first in their canonical order, then the rest alphabetically.
func orderModes(modes map[string]string) []string {
	order := make([]string, 0, len(modes))
	for _, name := range builtinModeOrder {
		if _, ok := modes[name]; ok {
			order = append(order, name)
		}
	}
	var extra []string
	for name := range modes {
		if !slices.Contains(builtinModeOrder, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func (c Catalog) AgentName() string { return c.agentName }

// Models returns a copy of the model list.
func (c Catalog) Models() []Model { return slices.Clone(c.models) }

// Model looks up a model by id.
func (c Catalog) Model(id string) (Model, bool) {
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ModelName returns the display name for id, or id itself when unknown.
func (c Catalog) ModelName(id string) string {
	if m, ok := c.Model(id); ok {
		return m.DisplayName()
	}
	return id
}

// ModeNames returns mode names in display order.
func (c Catalog) ModeNames() []string { return slices.Clone(c.modeOrder) }

// HasMode reports whether name (case-insensitive) is a known mode.
func (c Catalog) HasMode(name string) bool {
	_, ok := c.modes[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Instruction returns the template for mode, falling back to the default mode.
func (c Catalog) Instruction(mode string) string {
	if instruction, ok := c.modes[strings.ToLower(strings.TrimSpace(mode))]; ok {
		return instruction
	}
	return c.modes[c.defaultMode]
}

func (c Catalog) DefaultMode() string { return c.defaultMode }
