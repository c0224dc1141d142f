package replicate

import (
	"fmt"
	"sort"
	"strings"
)

type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "boolean"
)

// Model describes a hosted model: its pinned version and the input fields the endpoint accepts.
type Model struct {
	Slug        string
	Ref         string
	Fields      map[string]FieldKind
	NonBlank    []string
	Credits     int
	Description string
}

var (
	Cartoonify = Model{
		Slug: "cartoonify",
		Ref:  "catacolabs/cartoonify:f109015d60170dfb20460f17da8cb863155823c85ece1115e1e9e4ec7ef51d3b",
		Fields: map[string]FieldKind{
			"seed":  KindNumber,
			"image": KindString,
		},
		NonBlank:    []string{"image"},
		Credits:     1,
		Description: "Cartoonify API is running. Use POST to generate cartoons.",
	}
	FaceToSticker = Model{
		Slug: "face-to-sticker",
		Ref:  "fofr/face-to-sticker:764d4827ea159608a07cdde8ddf1c6000019627515eb02b6b449695fd547e5ef",
		Fields: map[string]FieldKind{
			"image":               KindString,
			"steps":               KindNumber,
			"width":               KindNumber,
			"height":              KindNumber,
			"prompt":              KindString,
			"upscale":             KindBool,
			"upscale_steps":       KindNumber,
			"negative_prompt":     KindString,
			"prompt_strength":     KindNumber,
			"ip_adapter_noise":    KindNumber,
			"ip_adapter_weight":   KindNumber,
			"instant_id_strength": KindNumber,
		},
		Credits:     1,
		Description: "Face to Sticker API is running. Use POST to generate stickers.",
	}
	PhotoToAnime = Model{
		Slug: "photo-to-anime",
		Ref:  "zf-kbot/photo-to-anime:7936c014091521e64f3721090cc878ab1bceb2d5e0deecc4549092fb7f9ba753",
		Fields: map[string]FieldKind{
			"image":               KindString,
			"width":               KindNumber,
			"height":              KindNumber,
			"prompt":              KindString,
			"strength":            KindNumber,
			"scheduler":           KindString,
			"num_outputs":         KindNumber,
			"guidance_scale":      KindNumber,
			"negative_prompt":     KindString,
			"num_inference_steps": KindNumber,
		},
		Credits:     1,
		Description: "Photo to Anime API is running. Use POST to generate anime-style images.",
	}
	AnimateDiff = Model{
		Slug: "animate-diff",
		Ref:  "lucataco/animate-diff:beecf59c4aee8d81bf04f0381033dfa10dc16e845b4ae00d281e2fa377e48a9f",
		Fields: map[string]FieldKind{
			"path":           KindString,
			"seed":           KindNumber,
			"steps":          KindNumber,
			"prompt":         KindString,
			"n_prompt":       KindString,
			"motion_module":  KindString,
			"guidance_scale": KindNumber,
		},
		Description: "Animate Diff API is running. Use POST to generate animations.",
	}
	Tooncrafter = Model{
		Slug: "tooncrafter",
		Ref:  "fofr/tooncrafter:0486ff07368e816ec3d5c69b9581e7a09b55817f567a0d74caad9395c9295c77",
		Fields: map[string]FieldKind{
			"loop":             KindBool,
			"prompt":           KindString,
			"image_1":          KindString,
			"image_2":          KindString,
			"image_3":          KindString,
			"max_width":        KindNumber,
			"max_height":       KindNumber,
			"interpolate":      KindBool,
			"negative_prompt":  KindString,
			"color_correction": KindBool,
		},
		Description: "Tooncrafter API is running. Use POST to generate animations.",
	}
)

// StableDiffusionModels are credit gated; AnimationModels are not.
var (
	StableDiffusionModels = []Model{Cartoonify, FaceToSticker, PhotoToAnime}
	AnimationModels       = []Model{AnimateDiff, Tooncrafter}
)

// Validate checks that input is a JSON object (as decoded by encoding/json) that carries every
// declared field with the declared primitive type.
func (m Model) Validate(input any) error {
	obj, ok := input.(map[string]any)
	if !ok || obj == nil {
		return fmt.Errorf("input must be an object")
	}

	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind := m.Fields[name]
		value, present := obj[name]
		if !present {
			return fmt.Errorf("missing field %q", name)
		}
		if !kind.matches(value) {
			return fmt.Errorf("field %q must be a %s", name, kind)
		}
	}
	for _, name := range m.NonBlank {
		if s, _ := obj[name].(string); strings.TrimSpace(s) == "" {
			return fmt.Errorf("field %q cannot be empty", name)
		}
	}
	return nil
}

func (k FieldKind) matches(value any) bool {
	switch k {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindNumber:
		_, ok := value.(float64)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	default:
		return false
	}
}
