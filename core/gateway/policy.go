package gateway

import "strings"

// Capabilities are what a request asks for beyond plain chat, decided once at intake.
type Capabilities struct {
	Mode       Mode
	DeepSearch bool
	ImageGen   bool
	Vision     bool
	// Visual is set when the query itself asks for a picture.
	Visual bool
}

// Advanced reports whether the request needs an elevated tier.
func (c Capabilities) Advanced() bool {
	return c.DeepSearch || c.ImageGen || c.Vision
}

// ImageBranch reports whether the request is answered by the image model instead of the chat model.
func (c Capabilities) ImageBranch() bool {
	return c.ImageGen || c.Visual
}

type trigger struct {
	name    string
	applies func(req Request, mode Mode) bool
	set     func(c *Capabilities)
}

// Policy is the table of capability triggers.
type Policy struct {
	triggers []trigger
}

// NewPolicy builds the trigger table. keywords are matched case-insensitively anywhere in the query.
func NewPolicy(keywords []string) *Policy {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}

	return &Policy{triggers: []trigger{
		{
			name:    "deepsearch",
			applies: func(_ Request, mode Mode) bool { return mode == ModeDeepSearch },
			set:     func(c *Capabilities) { c.DeepSearch = true },
		},
		{
			name:    "imagegen",
			applies: func(_ Request, mode Mode) bool { return mode == ModeImageGen },
			set:     func(c *Capabilities) { c.ImageGen = true },
		},
		{
			name:    "attached image",
			applies: func(req Request, _ Mode) bool { return len(req.Image) > 0 },
			set:     func(c *Capabilities) { c.Vision = true },
		},
		{
			// an attached image is something to read, not something to draw
			name: "visual keyword",
			applies: func(req Request, _ Mode) bool {
				if len(req.Image) > 0 {
					return false
				}
				q := strings.ToLower(req.Query())
				for _, k := range lowered {
					if strings.Contains(q, k) {
						return true
					}
				}
				return false
			},
			set: func(c *Capabilities) { c.Visual = true },
		},
	}}
}

func (p *Policy) Evaluate(req Request) Capabilities {
	mode := ParseMode(req.Mode)
	caps := Capabilities{Mode: mode}
	for _, t := range p.triggers {
		if t.applies(req, mode) {
			t.set(&caps)
		}
	}
	return caps
}
