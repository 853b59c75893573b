package gateway

import "github.com/margdarshak/gateway/core"

type Provider string

const (
	ProviderSambanova   Provider = "sambanova"
	ProviderHuggingFace Provider = "huggingface"
	ProviderGithub      Provider = "github"
)

// Temperature is the sampling temperature used for every call to provider p.
func (p Provider) Temperature() float64 {
	if p == ProviderSambanova {
		return 0.1
	}
	return 0.2
}

type Model struct {
	Key      string
	Provider Provider
	ID       string
}

const DefaultModelKey = "sambanova-llama"

var catalog = map[string]Model{
	"sambanova-llama": {Key: "sambanova-llama", Provider: ProviderSambanova, ID: "Meta-Llama-3.1-8B-Instruct"},
	"gemma-27b":       {Key: "gemma-27b", Provider: ProviderHuggingFace, ID: "google/gemma-2-27b-it"},
	"qwen-27b":        {Key: "qwen-27b", Provider: ProviderHuggingFace, ID: "Qwen/Qwen2.5-32B-Instruct"},
	"github-gpt4o":    {Key: "github-gpt4o", Provider: ProviderGithub, ID: "gpt-4o"},
}

// LookupModel returns the catalog entry for key, or the default model when key is unknown.
func LookupModel(key string) Model {
	if m, ok := catalog[core.CleanString(key, true /* lower */)]; ok {
		return m
	}
	return catalog[DefaultModelKey]
}

type CredentialSource int

const (
	CredentialNone CredentialSource = iota
	CredentialCaller
	CredentialSystem
)

func (s CredentialSource) String() string {
	switch s {
	case CredentialCaller:
		return "caller"
	case CredentialSystem:
		return "system"
	default:
		return "none"
	}
}

// Credential is an upstream API key together with who owns it.
// Its String and GoString never print the key.
type Credential struct {
	Provider Provider
	Key      string
	Source   CredentialSource
}

func (c Credential) IsZero() bool { return c.Key == "" }

func (c Credential) String() string {
	return string(c.Provider) + "/" + c.Source.String() + "/" + core.Fingerprint(c.Key)
}

func (c Credential) GoString() string { return "gateway.Credential{" + c.String() + "}" }

// SystemCredentials are the system-owned upstream keys, loaded once at startup.
type SystemCredentials struct {
	Sambanova   string
	HuggingFace string
	Github      string
}

func (s SystemCredentials) For(p Provider) string {
	switch p {
	case ProviderSambanova:
		return s.Sambanova
	case ProviderHuggingFace:
		return s.HuggingFace
	case ProviderGithub:
		return s.Github
	default:
		return ""
	}
}
