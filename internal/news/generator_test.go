package news

import (
	"context"
	"strings"
	"sync"
)

// fakeGenerator answers prompts by substring match.
type fakeGenerator struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	fallback  string
	prompts   []string
	keys      []string
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, apiKey, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, prompt)
	f.keys = append(f.keys, apiKey)

	for marker, err := range f.errs {
		if strings.Contains(prompt, marker) {
			return "", err
		}
	}
	for marker, resp := range f.responses {
		if strings.Contains(prompt, marker) {
			return resp, nil
		}
	}
	return f.fallback, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}
