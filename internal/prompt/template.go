package prompt

import "fmt"

const backgroundTemplate = "Generate a photorealistic, high-resolution background image for a portrait photo: %s. " +
	"The scene should have natural lighting, rich detail and depth, no people or text, " +
	"and be suitable as a backdrop behind a person. Ultra high resolution."

// BuildInstruction embeds a sanitized prompt in the background generation instruction.
func BuildInstruction(sanitized string) string {
	return fmt.Sprintf(backgroundTemplate, sanitized)
}
