package registry

var (
	headline = TextBound{Role: RoleHeadline, Required: true, MinChars: 10, MaxChars: 50}
	body     = TextBound{Role: RoleBody, Required: true, MinChars: 50, MaxChars: 2000}
	bodyOpt  = TextBound{Role: RoleBody, MinChars: 50, MaxChars: 1000}
	bullets  = TextBound{Role: RoleBullets, Required: true, MinChars: 10, MaxChars: 1000}
	sidebar  = TextBound{Role: RoleSidebar, MinChars: 10, MaxChars: 400}
	specs    = TextBound{Role: RoleSpecifications, Required: true, MinChars: 10, MaxChars: 1500}
	caption  = TextBound{Role: RoleStatic}
)

var catalogue = []Spec{
	{
		ID:        "standard-header-image-text",
		Name:      "Standard header image with text",
		Category:  Standard,
		Images:    Range{Min: 1, Max: 1},
		ImageSize: Size{W: 970, H: 600},
		Text:      []TextBound{headline, body},
		Width:     970,
		Height:    900,
	},
	{
		ID:        "standard-single-image-sidebar",
		Name:      "Standard single image and sidebar",
		Category:  Standard,
		Images:    Range{Min: 1, Max: 1},
		ImageSize: Size{W: 300, H: 400},
		Text:      []TextBound{headline, body, sidebar},
		Width:     970,
		Height:    600,
	},
	{
		ID:        "standard-single-image-highlights",
		Name:      "Standard single image and highlights",
		Category:  Standard,
		Images:    Range{Min: 1, Max: 1},
		ImageSize: Size{W: 300, H: 300},
		Text:      []TextBound{headline, bullets},
		Width:     970,
		Height:    600,
	},
	{
		ID:        "standard-single-image-specs",
		Name:      "Standard single image and specifications detail",
		Category:  Standard,
		Images:    Range{Min: 1, Max: 1},
		ImageSize: Size{W: 300, H: 300},
		Text:      []TextBound{headline, specs, bodyOpt},
		Width:     970,
		Height:    600,
	},
	{
		ID:        "standard-three-images-text",
		Name:      "Standard three images and text",
		Category:  Standard,
		Images:    Range{Min: 3, Max: 3},
		ImageSize: Size{W: 300, H: 300},
		Text:      []TextBound{headline, body},
		Width:     970,
		Height:    600,
	},
	{
		ID:        "standard-four-images-text",
		Name:      "Standard four images and text",
		Category:  Standard,
		Images:    Range{Min: 2, Max: 4},
		ImageSize: Size{W: 220, H: 220},
		Text:      []TextBound{headline, body},
		Width:     970,
		Height:    600,
	},
	{
		ID:        "standard-image-text-overlay",
		Name:      "Standard image with text overlay",
		Category:  Standard,
		Images:    Range{Min: 1, Max: 1},
		ImageSize: Size{W: 970, H: 300},
		Text:      []TextBound{headline, bodyOpt},
		Width:     970,
		Height:    300,
		Overlay:   true,
	},
	{
		ID:        "standard-company-logo",
		Name:      "Standard company logo",
		Category:  Standard,
		Images:    Range{Min: 1, Max: 1},
		ImageSize: Size{W: 600, H: 180},
		Width:     600,
		Height:    180,
	},
	{
		ID:       "standard-tech-specs",
		Name:     "Standard technical specifications",
		Category: Standard,
		Images:   Range{Min: 0, Max: 0},
		Text:     []TextBound{caption, headline, specs},
		Width:    970,
		Height:   600,
	},
	{
		ID:        "premium-full-image",
		Name:      "Premium full image",
		Category:  Premium,
		Images:    Range{Min: 1, Max: 1},
		ImageSize: Size{W: 1464, H: 600},
		Text:      []TextBound{headline, bodyOpt},
		Width:     1464,
		Height:    600,
		Overlay:   true,
	},
	{
		ID:        "premium-four-image-highlights",
		Name:      "Premium four images with highlights",
		Category:  Premium,
		Images:    Range{Min: 4, Max: 4},
		ImageSize: Size{W: 300, H: 300},
		Text:      []TextBound{headline, bullets},
		Width:     1464,
		Height:    600,
	},
	{
		ID:        "premium-comparison",
		Name:      "Premium comparison",
		Category:  Premium,
		Images:    Range{Min: 2, Max: 4},
		ImageSize: Size{W: 300, H: 300},
		Text:      []TextBound{caption, headline, specs},
		Width:     1464,
		Height:    600,
	},
}
