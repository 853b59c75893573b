package gateway

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
)

type Mode string

const (
	ModeDefault    Mode = "default"
	ModeDeepSearch Mode = "deepsearch"
	ModeImageGen   Mode = "imagegen"
)

// ParseMode maps the caller's mode flag onto a known mode. Unknown values fall back to ModeDefault.
func ParseMode(s string) Mode {
	switch core.CleanString(s, true /* lower */) {
	case "deepsearch", "deepresearch":
		return ModeDeepSearch
	case "imagegen":
		return ModeImageGen
	default:
		return ModeDefault
	}
}

type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// Request is one normalized chat turn, whatever encoding it arrived in.
type Request struct {
	Messages []Message `json:"messages" validate:"required,min=1,dive"`
	Mode     string    `json:"mode"`
	Model    string    `json:"model"`
	Image    []byte    `json:"-"`

	// credentials from headers
	UserAPIKey   string `json:"-"`
	SessionToken string `json:"-"`
}

var errBlankQuery = errors.New("the last message has no content")

// Query is the content of the latest message.
func (r Request) Query() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

func (r Request) Validate(validate *validator.Validate) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if strings.TrimSpace(r.Query()) == "" {
		return core.NewValidationError(errBlankQuery, core.FieldError{Field: "messages", Error: errBlankQuery.Error()})
	}
	return nil
}

type Agent string

const (
	AgentPhysics   Agent = "PHYSICS"
	AgentChemistry Agent = "CHEMISTRY"
	AgentMath      Agent = "MATH"
	AgentBiology   Agent = "BIOLOGY"
	AgentGeneral   Agent = "GENERAL"
)

var agents = map[Agent]bool{
	AgentPhysics:   true,
	AgentChemistry: true,
	AgentMath:      true,
	AgentBiology:   true,
	AgentGeneral:   true,
}

// ParseAgent normalizes a classifier label. Anything outside the taxonomy is AgentGeneral.
func ParseAgent(s string) Agent {
	a := Agent(strings.ToUpper(strings.TrimSpace(s)))
	if agents[a] {
		return a
	}
	return AgentGeneral
}

type RoutingDecision struct {
	Agent          Agent
	OptimizedQuery string
}

type Source string

const (
	SourceVault  Source = "Vault"
	SourceWeb    Source = "Web"
	SourceVision Source = "VISUAL DATA"
)

type Fragment struct {
	Source Source
	Text   string
}

func (f Fragment) String() string {
	return fmt.Sprintf("[%s]: %s", f.Source, f.Text)
}

// RetrievedContext is the grounding material gathered for one request.
type RetrievedContext struct {
	Vault  []Fragment
	Web    []Fragment
	Vision []Fragment
}

func joinFragments(frags []Fragment, sep string) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, sep)
}

func (c RetrievedContext) VaultText() string  { return joinFragments(c.Vault, "\n\n") }
func (c RetrievedContext) WebText() string    { return joinFragments(c.Web, "\n") }
func (c RetrievedContext) VisionText() string { return joinFragments(c.Vision, "\n") }

type Passage struct {
	ID         int64
	Content    string
	Subject    string
	Chapter    string
	Page       int
	Similarity float64
}

type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// Identity is a caller whose session was proven.
type Identity struct {
	UserID string
	Email  string
	Role   string
	// Claims are the raw session claims, forwarded to the knowledge store so row-level policies apply.
	Claims map[string]interface{}
}

func (i Identity) IsZero() bool { return i.UserID == "" }

func (i Identity) Person() core.Person {
	return core.Person{ID: i.UserID, Email: i.Email}
}
