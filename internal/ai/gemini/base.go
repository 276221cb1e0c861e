package gemini

import "google.golang.org/genai"

// GeminiProvider is the shared base holding the client and model name.
type GeminiProvider struct {
	Client *genai.Client
	model  string
}

func NewGeminiProvider(client *genai.Client, model string) *GeminiProvider {
	return &GeminiProvider{
		Client: client,
		model:  model,
	}
}

func (g *GeminiProvider) GetModelName() string {
	return g.model
}

func (g *GeminiProvider) GetProviderName() string {
	return "gemini"
}
