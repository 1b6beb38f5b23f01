package tryon

import (
	"fmt"
	"strings"
)

// BuildPrompt returns the instruction sent ahead of the images. The person
// image always comes first, followed by clothingCount clothing images.
func BuildPrompt(clothingCount int) string {
	var b strings.Builder

	b.WriteString("You are an expert virtual try-on AI.\n\n")

	if clothingCount <= 1 {
		b.WriteString("Task: Generate a photorealistic image showing the person from the first image wearing the clothing item from the second image.\n\n")
	} else {
		fmt.Fprintf(&b, "Task: Generate a photorealistic image showing the person from the first image wearing all of the clothing items from the following %d images, combined into one outfit.\n\n", clothingCount)
	}

	b.WriteString("Requirements:\n")
	b.WriteString("1. Keep the person's face, body shape, pose, and background exactly the same\n")
	if clothingCount <= 1 {
		b.WriteString("2. Naturally fit the clothing item onto the person's body\n")
	} else {
		b.WriteString("2. Naturally fit every clothing item onto the person's body, layered the way they would be worn\n")
	}
	b.WriteString("3. Adjust clothing wrinkles and shadows to match the person's pose\n")
	b.WriteString("4. Maintain realistic lighting consistent with the original photo\n")
	b.WriteString("5. The result should look like an actual photograph, not a digital edit\n\n")
	b.WriteString("Generate the virtual try-on result image now.")

	return b.String()
}
