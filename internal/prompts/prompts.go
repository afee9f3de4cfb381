package prompts

import (
	"fmt"
	"strings"
)

// VLMSystemPrompt sets the role for meme description.
const VLMSystemPrompt = `You are an AI that describes memes concisely, including any raw text in the image.
Your description is embedded and used for natural-language search, so name the characters, the format or template, the emotion and any pop culture reference you recognise.`

// VLMUserPrompt is the core instruction sent with every image.
const VLMUserPrompt = "Please analyze the following meme and describe its content."

// placeholder renders an empty context field.
const placeholder = "None"

// ContextSentence summarises user-supplied hints in a fixed order.
// Empty fields render as "None". It returns "" when every field is empty.
func ContextSentence(popCulture, characters, notes string) string {
	popCulture = strings.TrimSpace(popCulture)
	characters = strings.TrimSpace(characters)
	notes = strings.TrimSpace(notes)
	if popCulture == "" && characters == "" && notes == "" {
		return ""
	}
	return fmt.Sprintf(
		"The uploader says this meme involves the following. Pop culture references: %s. Characters: %s. Other notes: %s.",
		orPlaceholder(popCulture), orPlaceholder(characters), orPlaceholder(notes),
	)
}

// DescribeUserPrompt prepends the context sentence, if any, to the core
// instruction.
func DescribeUserPrompt(popCulture, characters, notes string) string {
	if s := ContextSentence(popCulture, characters, notes); s != "" {
		return s + "\n\n" + VLMUserPrompt
	}
	return VLMUserPrompt
}

// TikTokUserContext builds the text prepended to scraped TikTok metadata
// from the non-empty hints only.
func TikTokUserContext(popCulture, characters, notes string) string {
	var parts []string
	if popCulture != "" {
		parts = append(parts, "Pop Culture References: "+popCulture+".")
	}
	if characters != "" {
		parts = append(parts, "Characters: "+characters+".")
	}
	if notes != "" {
		parts = append(parts, "Other Notes: "+notes+".")
	}
	return strings.Join(parts, " ")
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
