package openai

import "fmt"

// Brief is what the user tells us about the business behind the logo.
type Brief struct {
	BusinessName string
	Slogan       string
	Industry     string
	ColorPalette string
	LogoType     string
}

const refineSystem = `You are a senior brand designer who writes prompts for AI logo generators.
Produce one detailed, professional prompt that covers:
- the business identity, values and audience
- design conventions that work in its industry
- color choices and the feelings they carry
- typography that suits the brand
- symbols or abstract marks tied to the business
- layout and balance of the elements
- legibility at small and large sizes
- what makes the mark distinct from competitors
Describe logo elements only, for a single cohesive design.`

// RefinePrompt turns a plain brief into a detailed text-to-image prompt.
func RefinePrompt(b Brief) CompletionRequest {
	user := fmt.Sprintf(`Write a detailed prompt for a professional %s logo in vector style.

Business name: %s
Slogan: %s
Industry: %s
Color palette: %s

Cover the visual style, color usage, shapes, symbolism, typography and text placement,
composition, and one feature that makes the logo memorable. Keep to logo elements only and
describe a single cohesive logo.`, b.LogoType, b.BusinessName, b.Slogan, b.Industry, b.ColorPalette)

	return CompletionRequest{
		System:      refineSystem,
		User:        user,
		MaxTokens:   1000,
		Temperature: 0.7,
	}
}

// SketchPrompt asks the vision model to read hand-drawn sketches and describe the core logo.
func SketchPrompt(b Brief, sketches []string) CompletionRequest {
	user := fmt.Sprintf(`Study the attached sketch(es) and write a logo prompt for %s, a company in %s.
Describe only the main mark, no surrounding elements or alternatives.

Business name: %s
Slogan: %s
Industry: %s
Color palette: %s
Logo type: %s

Include the key shapes and style of the mark, colors for the mark itself, industry symbolism,
how the business name fits in if it is part of the logo, and how the mark holds up at
different sizes. Stay brief.`, b.BusinessName, b.Industry, b.BusinessName, b.Slogan, b.Industry, b.ColorPalette, b.LogoType)

	return CompletionRequest{
		System:      "You are an experienced logo designer. Read the sketches you are given and write a short prompt for the core logo only.",
		User:        user,
		Images:      sketches,
		MaxTokens:   500,
		Temperature: 0.7,
	}
}

// VariationPrompt asks the vision model to analyse existing logos and propose variations.
func VariationPrompt(b Brief, logos []string) CompletionRequest {
	user := fmt.Sprintf(`Analyse the attached logo(s) for %s, a company in %s, and write prompts for new variations.

Business name: %s
Slogan: %s
Industry: %s
Current color palette: %s
Logo type: %s

First describe the existing mark: shapes, icon, typography, colors, composition, symbolism
and what makes it recognisable.

Then write 3 variation prompts. Each one changes one major element, proposes a new color
scheme with hex codes, strengthens the link to %s, and spells out shapes, sizes, placement,
typography and spacing precisely enough for an image model to render it. Keep the brand
recognisable and the mark usable on screen, in print and on merchandise.`,
		b.BusinessName, b.Industry, b.BusinessName, b.Slogan, b.Industry, b.ColorPalette, b.LogoType, b.Industry)

	return CompletionRequest{
		System:      "You are a logo designer and brand identity specialist. Analyse the logos you are given and write detailed prompts for creative variations that keep the brand's essence.",
		User:        user,
		Images:      logos,
		MaxTokens:   1500,
		Temperature: 0.8,
	}
}
