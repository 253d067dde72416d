// Package draft asks a language model for a message draft: a subject and a
// template body that can be fed to binder.Parse.
//
// Generator is the provider boundary. BuildPrompt assembles the system
// prompt, the conversation history and the JSON format instructions, and
// ParseDraft decodes the model answer. The generated text is treated as an
// ordinary template string; nothing here validates its content.
package draft
