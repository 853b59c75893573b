package gateway

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
)

const (
	imageDataURIPrefix = "data:image/png;base64,"
	visualGenerated    = "Visual generated."
	visualFailedPrefix = "Visual gen failed: "
)

// Illustrator answers image-generation requests.
type Illustrator struct {
	images ImageModel
	style  string
	steps  int
	logger core.Logger
}

func NewIllustrator(images ImageModel, style string, steps int, logger core.Logger) *Illustrator {
	return &Illustrator{images: images, style: style, steps: steps, logger: logger}
}

func (il *Illustrator) prompt(query string) string {
	query = strings.TrimSpace(query)
	if il.style == "" {
		return query
	}
	return query + ", " + il.style
}

// Draw always produces an OK result: a failed generation is explained in the answer text.
func (il *Illustrator) Draw(ctx context.Context, query string, ent Entitlement) Result {
	// the caller's HF key if they have one; otherwise the system image model
	cred, _ := ent.CredentialFor(ProviderHuggingFace)

	img, err := il.images.Generate(ctx, ImageRequest{Prompt: il.prompt(query), Steps: il.steps, Credential: cred})
	if err != nil {
		il.logger.Warn("image generation failed", errors.Wrap(err, "generating image"), ent.Identity.Person())
		return OK(visualFailedPrefix+err.Error(), "", AgentGeneral)
	}
	if len(img) == 0 {
		return OK(visualFailedPrefix+"empty image", "", AgentGeneral)
	}
	return OK(visualGenerated, imageDataURIPrefix+base64.StdEncoding.EncodeToString(img), AgentGeneral)
}
